package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/repo"
	"github.com/radieske/sports-bet-ledger/internal/shared/db/dbtest"
)

func odds(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestSourcesAndImportOnPostgres(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	src := repo.NewPostgres(conn)
	matches := catalog.NewPostgres(conn)

	api := repo.GameAPI{Name: "The Odds API", Provider: "the-odds-api", APIURL: "https://api.the-odds-api.com/v4/sports/", APIKey: "k1", IsActive: true}
	require.NoError(t, src.CreateAPI(ctx, &api))
	require.NotEmpty(t, api.ID)

	t.Run("update keeps key when empty", func(t *testing.T) {
		upd := api
		upd.Name = "Odds"
		upd.APIKey = ""
		require.NoError(t, src.UpdateAPI(ctx, upd))

		got, err := src.GetAPI(ctx, api.ID)
		require.NoError(t, err)
		assert.Equal(t, "Odds", got.Name)
		assert.Equal(t, "k1", got.APIKey)
		assert.Nil(t, got.LastSync)

		at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		require.NoError(t, src.TouchSync(ctx, api.ID, at))
		got, err = src.GetAPI(ctx, api.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastSync)
		assert.True(t, got.LastSync.Equal(at))

		_, err = src.GetAPI(ctx, "nope")
		assert.ErrorIs(t, err, apperr.NotFound)
	})

	t.Run("categories are inserted inactive once", func(t *testing.T) {
		cats := []repo.Category{{Key: "soccer_epl", Name: "EPL", Group: "Soccer"}, {Key: "cricket_ipl", Name: "IPL", Group: "Cricket"}}
		n, err := src.InsertCategories(ctx, api.ID, cats)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = src.InsertCategories(ctx, api.ID, cats)
		require.NoError(t, err)
		assert.Zero(t, n)

		public, err := src.ListCategories(ctx, true)
		require.NoError(t, err)
		assert.Empty(t, public)

		all, err := src.ListCategories(ctx, false)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "cricket_ipl", all[0].Key)

		require.NoError(t, src.SetCategoryActive(ctx, all[1].ID, true))
		keys, err := src.ActiveCategoryKeys(ctx, api.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"soccer_epl"}, keys)
	})

	t.Run("imported matches enter hidden and refresh odds only", func(t *testing.T) {
		date := time.Date(2026, 11, 1, 15, 0, 0, 0, time.UTC)
		items := []catalog.ImportedMatch{{
			ExternalID: "ev1", HomeTeam: "Arsenal", AwayTeam: "Chelsea", Sport: "EPL", CategoryKey: "soccer_epl",
			MatchDate: date, HomeOdds: odds("2.1"), DrawOdds: odds("3.25"), AwayOdds: odds("3.4"),
		}}
		ins, upd, err := matches.UpsertImported(ctx, api.ID, items)
		require.NoError(t, err)
		assert.Equal(t, 1, ins)
		assert.Zero(t, upd)

		list, err := matches.ListAdmin(ctx, catalog.AdminFilter{Search: "arsenal"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		m := list[0]
		assert.False(t, m.ShowOnFrontend)
		assert.Equal(t, catalog.StatusUpcoming, m.Status)
		assert.Equal(t, api.ID, m.APISourceID)

		require.NoError(t, matches.SetVisibility(ctx, m.ID, true))
		require.NoError(t, matches.SetStatus(ctx, m.ID, catalog.StatusLive, ""))

		items[0].HomeTeam = "Renamed"
		items[0].HomeOdds = odds("1.9")
		ins, upd, err = matches.UpsertImported(ctx, api.ID, items)
		require.NoError(t, err)
		assert.Zero(t, ins)
		assert.Equal(t, 1, upd)

		got, err := matches.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, "Arsenal", got.HomeTeam)
		assert.True(t, got.ShowOnFrontend)
		assert.Equal(t, catalog.StatusLive, got.Status)
		assert.True(t, got.HomeOdds.Decimal.Equal(decimal.RequireFromString("1.9")))

		visible, err := matches.ListVisible(ctx)
		require.NoError(t, err)
		assert.Len(t, visible, 1)
	})

	t.Run("finished matches keep status and result", func(t *testing.T) {
		m := catalog.Match{HomeTeam: "Lakers", AwayTeam: "Warriors", Sport: "Basketball",
			MatchDate: time.Now().Add(time.Hour), Status: catalog.StatusUpcoming}
		require.NoError(t, matches.Create(ctx, &m))

		assert.ErrorIs(t, matches.SetStatus(ctx, m.ID, catalog.StatusUpcoming, ""), apperr.InvalidTransition)
		require.NoError(t, matches.SetStatus(ctx, m.ID, catalog.StatusCompleted, catalog.BetHome))
		assert.ErrorIs(t, matches.SetStatus(ctx, m.ID, catalog.StatusLive, ""), apperr.InvalidTransition)
		assert.ErrorIs(t, matches.SetStatus(ctx, m.ID, catalog.StatusCompleted, catalog.BetAway), apperr.InvalidTransition)
		assert.ErrorIs(t, matches.SetStatus(ctx, uuid.NewString(), catalog.StatusLive, ""), apperr.NotFound)

		got, err := matches.Get(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, catalog.StatusCompleted, got.Status)
		assert.Equal(t, catalog.BetHome, got.Result)

		require.NoError(t, matches.Delete(ctx, m.ID))
	})

	t.Run("deleting the source keeps matches", func(t *testing.T) {
		require.NoError(t, src.DeleteAPI(ctx, api.ID))
		assert.ErrorIs(t, src.DeleteAPI(ctx, api.ID), apperr.NotFound)

		all, err := src.ListCategories(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, all)

		list, err := matches.ListAdmin(ctx, catalog.AdminFilter{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Empty(t, list[0].APISourceID)
	})
}
