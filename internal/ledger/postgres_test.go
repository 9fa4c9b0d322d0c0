package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/db/dbtest"
)

func deposit(t *testing.T, s ledger.Store, user, ref string, amount int64) {
	t.Helper()
	err := s.Atomically(context.Background(), user, func(ctx context.Context, tx ledger.Tx) error {
		_, err := tx.Append(ctx, ledger.Entry{Kind: ledger.KindDeposit, AmountMinor: amount, ReferenceID: ref})
		return err
	})
	require.NoError(t, err)
}

func TestPostgresLedger(t *testing.T) {
	conn := dbtest.Open(t)
	store := ledger.NewPostgres(conn, zaptest.NewLogger(t))
	ctx := context.Background()

	t.Run("append and fold", func(t *testing.T) {
		deposit(t, store, "alice", "dep:1", 100_000)
		err := store.Atomically(ctx, "alice", func(ctx context.Context, tx ledger.Tx) error {
			_, err := ledger.Debit(ctx, tx, ledger.Entry{Kind: ledger.KindBetStake, ReferenceID: "bet:1"}, 2_500)
			return err
		})
		require.NoError(t, err)

		bal, err := store.CurrentBalance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(97_500), bal)

		var cached int64
		require.NoError(t, conn.QueryRow(`SELECT balance_minor FROM wallets WHERE user_id='alice'`).Scan(&cached))
		assert.Equal(t, bal, cached)
	})

	t.Run("duplicate reference rolls back the whole unit", func(t *testing.T) {
		err := store.Atomically(ctx, "alice", func(ctx context.Context, tx ledger.Tx) error {
			if _, err := tx.Append(ctx, ledger.Entry{Kind: ledger.KindDeposit, AmountMinor: 10, ReferenceID: "dep:2"}); err != nil {
				return err
			}
			_, err := tx.Append(ctx, ledger.Entry{Kind: ledger.KindDeposit, AmountMinor: 10, ReferenceID: "dep:1"})
			return err
		})
		assert.ErrorIs(t, err, apperr.DuplicateReference)

		bal, _ := store.CurrentBalance(ctx, "alice")
		assert.Equal(t, int64(97_500), bal)
	})

	t.Run("entries are immutable", func(t *testing.T) {
		_, err := conn.Exec(`UPDATE ledger_entries SET amount_minor = 1 WHERE reference_id='dep:1'`)
		assert.Error(t, err)
		_, err = conn.Exec(`DELETE FROM ledger_entries WHERE reference_id='dep:1'`)
		assert.Error(t, err)
	})

	t.Run("projection drift is repaired", func(t *testing.T) {
		_, err := conn.Exec(`UPDATE wallets SET balance_minor = 1 WHERE user_id='alice'`)
		require.NoError(t, err)

		err = store.Atomically(ctx, "alice", func(ctx context.Context, tx ledger.Tx) error {
			bal, err := tx.Balance(ctx)
			assert.Equal(t, int64(97_500), bal)
			return err
		})
		require.NoError(t, err)

		var cached int64
		require.NoError(t, conn.QueryRow(`SELECT balance_minor FROM wallets WHERE user_id='alice'`).Scan(&cached))
		assert.Equal(t, int64(97_500), cached)
	})

	t.Run("concurrent debits of the full balance", func(t *testing.T) {
		deposit(t, store, "bob", "dep:bob", 1_000)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Atomically(ctx, "bob", func(ctx context.Context, tx ledger.Tx) error {
					_, err := ledger.Debit(ctx, tx, ledger.Entry{Kind: ledger.KindBetStake, ReferenceID: fmt.Sprintf("bet:bob:%d", i)}, 1_000)
					return err
				})
			}(i)
		}
		wg.Wait()

		var ok, rejected int
		for _, err := range errs {
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, apperr.InsufficientBalance) {
				rejected++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, rejected)

		bal, _ := store.CurrentBalance(ctx, "bob")
		assert.Zero(t, bal)
	})

	t.Run("entries are ordered and restartable", func(t *testing.T) {
		p1, err := store.EntriesFor(ctx, "alice", 0, 1)
		require.NoError(t, err)
		require.Len(t, p1.Entries, 1)
		assert.Equal(t, "dep:1", p1.Entries[0].ReferenceID)

		p2, err := store.EntriesFor(ctx, "alice", p1.Next, 10)
		require.NoError(t, err)
		require.Len(t, p2.Entries, 1)
		assert.Equal(t, "bet:1", p2.Entries[0].ReferenceID)
		assert.Equal(t, int64(-2_500), p2.Entries[0].AmountMinor)
	})
}
