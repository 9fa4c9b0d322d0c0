package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/engine"
	"github.com/radieske/sports-bet-ledger/internal/bet-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/shared/config"
	"github.com/radieske/sports-bet-ledger/internal/shared/db/dbtest"
	"github.com/radieske/sports-bet-ledger/internal/shared/settings"
	"github.com/radieske/sports-bet-ledger/pkg/contracts/events"
)

type nopPublisher struct{}

func (nopPublisher) PublishBetPlaced(context.Context, events.BetPlaced) error   { return nil }
func (nopPublisher) PublishBetSettled(context.Context, events.BetSettled) error { return nil }

func TestEngineOnPostgres(t *testing.T) {
	conn := dbtest.Open(t)
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	store := ledger.NewPostgres(conn, log)
	bets := repo.NewPostgres(conn)
	matches := catalog.NewPostgres(conn)
	sets := settings.NewStore(conn, nil, time.Minute, settings.Defaults(config.Config{StakeMinMinor: 1_000, StakeMaxMinor: 1_000_000}), log)
	eng := engine.New(store, bets, matches, sets, nopPublisher{}, log)

	m := catalog.Match{
		HomeTeam: "Kolkata", AwayTeam: "Delhi", Sport: "Cricket",
		MatchDate: time.Now().Add(24 * time.Hour), ShowOnFrontend: true,
		HomeOdds: decimal.NewNullDecimal(decimal.RequireFromString("1.75")),
		AwayOdds: decimal.NewNullDecimal(decimal.RequireFromString("2.25")),
	}
	require.NoError(t, matches.Create(ctx, &m))

	deposit := func(user, ref string, amount int64) {
		require.NoError(t, store.Atomically(ctx, user, func(ctx context.Context, tx ledger.Tx) error {
			_, err := tx.Append(ctx, ledger.Entry{Kind: ledger.KindDeposit, AmountMinor: amount, ReferenceID: ref})
			return err
		}))
	}
	balance := func(user string) int64 {
		b, err := store.CurrentBalance(ctx, user)
		require.NoError(t, err)
		return b
	}

	t.Run("place, replay and settle won", func(t *testing.T) {
		deposit("alice", "deposit:a1", 10_000)
		in := engine.PlaceBetInput{MatchID: m.ID, BetType: catalog.BetHome, StakeMinor: 2_000, IdempotencyKey: "a-1"}

		bet, replayed, err := eng.PlaceBet(ctx, "alice", in)
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, int64(3_500), bet.PotentialPayoutMinor)

		again, replayed, err := eng.PlaceBet(ctx, "alice", in)
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, bet.ID, again.ID)
		assert.Equal(t, int64(8_000), balance("alice"))

		// odds mudam depois da aposta: a aposta mantém as suas
		require.NoError(t, matches.UpdateOdds(ctx, m.ID,
			decimal.NewNullDecimal(decimal.RequireFromString("3.00")), decimal.NullDecimal{}, m.AwayOdds))

		settled, err := eng.SettleBet(ctx, bet.ID, repo.StatusWon, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, repo.StatusWon, settled.Status)
		assert.Equal(t, int64(11_500), balance("alice"))

		_, err = eng.SettleBet(ctx, bet.ID, repo.StatusCancelled, "admin-1")
		assert.ErrorIs(t, err, apperr.AlreadySettled)
		assert.Equal(t, int64(11_500), balance("alice"))

		var history int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM bet_status_history WHERE bet_id=$1`, bet.ID).Scan(&history))
		assert.Equal(t, 1, history)

		list, err := eng.ListBets(ctx, "alice", 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Kolkata", list[0].HomeTeam)
		assert.True(t, list[0].Odds.Equal(decimal.RequireFromString("1.75")))
	})

	t.Run("concurrent bets on exact balance", func(t *testing.T) {
		deposit("bob", "deposit:b1", 5_000)

		var (
			wg   sync.WaitGroup
			errs = make([]error, 4)
		)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, errs[i] = eng.PlaceBet(ctx, "bob", engine.PlaceBetInput{MatchID: m.ID, BetType: catalog.BetAway, StakeMinor: 5_000})
			}(i)
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, apperr.InsufficientBalance)
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, int64(0), balance("bob"))
	})

	t.Run("hidden match", func(t *testing.T) {
		deposit("carol", "deposit:c1", 5_000)
		require.NoError(t, matches.SetVisibility(ctx, m.ID, false))
		t.Cleanup(func() { _ = matches.SetVisibility(ctx, m.ID, true) })

		_, _, err := eng.PlaceBet(ctx, "carol", engine.PlaceBetInput{MatchID: m.ID, BetType: catalog.BetHome, StakeMinor: 1_000})
		assert.ErrorIs(t, err, apperr.MatchNotBettable)
		assert.Equal(t, int64(5_000), balance("carol"))
	})

	t.Run("match with bets cannot be deleted", func(t *testing.T) {
		assert.ErrorIs(t, matches.Delete(ctx, m.ID), apperr.MatchReferenced)
	})

	t.Run("settle match", func(t *testing.T) {
		deposit("dave", "deposit:d1", 10_000)
		_, _, err := eng.PlaceBet(ctx, "dave", engine.PlaceBetInput{MatchID: m.ID, BetType: catalog.BetHome, StakeMinor: 1_000})
		require.NoError(t, err)

		sum, err := eng.SettleMatch(ctx, m.ID, engine.MatchResult(catalog.BetAway), "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Won)  // bob
		assert.Equal(t, 1, sum.Lost) // dave
		assert.Equal(t, int64(11_250), balance("bob"))
		assert.Equal(t, int64(9_000), balance("dave"))

		got, err := matches.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, catalog.StatusCompleted, got.Status)
		assert.Equal(t, catalog.BetAway, got.Result)

		st, err := eng.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), st.Pending)
		assert.Equal(t, int64(3), st.Total)
	})
}
