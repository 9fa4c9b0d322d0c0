package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want *apperr.Error
	}{
		{"unique", &pq.Error{Code: "23505", Constraint: "ledger_entries_reference_id_key"}, apperr.DuplicateReference},
		{"serialization", &pq.Error{Code: "40001"}, apperr.ConcurrentWrite},
		{"deadlock", fmt.Errorf("exec: %w", &pq.Error{Code: "40P01"}), apperr.ConcurrentWrite},
		{"shutdown", &pq.Error{Code: "57P01"}, apperr.Unavailable},
		{"bad conn", driver.ErrBadConn, apperr.Unavailable},
		{"deadline", context.DeadlineExceeded, apperr.Unavailable},
		{"no rows", sql.ErrNoRows, apperr.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.in)
		})
	}
}

func TestClassifyPassthrough(t *testing.T) {
	assert.NoError(t, Classify(nil))

	domain := apperr.InsufficientBalance.With("x")
	assert.Same(t, domain, Classify(domain))

	plain := errors.New("syntax error")
	assert.Equal(t, plain, Classify(plain))

	other := &pq.Error{Code: "42601"}
	assert.Equal(t, error(other), Classify(other))
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "bets_reference_id_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "bets_reference_id_key"))
	assert.False(t, IsUniqueViolation(err, "ledger_entries_reference_id_key"))
	assert.False(t, IsUniqueViolation(errors.New("x"), ""))
	assert.True(t, IsForeignKeyViolation(&pq.Error{Code: "23503"}))
}
