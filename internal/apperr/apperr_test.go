package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := InsufficientBalance.With("balance %d below %d", 100, 500)

	assert.ErrorIs(t, err, InsufficientBalance)
	assert.NotErrorIs(t, err, InvalidStake)
	assert.Equal(t, KindPrecondition, KindOf(err))
	assert.Equal(t, "insufficient_balance", CodeOf(err))
}

func TestWrappedKeepsKind(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("load wallet: %w", Unavailable.Wrap(cause))

	assert.ErrorIs(t, err, Unavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Retryable(err))
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestNonDomainError(t *testing.T) {
	err := errors.New("boom")

	assert.Equal(t, Kind(0), KindOf(err))
	assert.Equal(t, "internal", CodeOf(err))
	assert.False(t, Retryable(err))
	assert.False(t, Retryable(DuplicateReference))
	assert.False(t, Retryable(InvalidStake))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "precondition_failed", KindPrecondition.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "internal", Kind(99).String())
}
