package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

func odds(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestIsBettable(t *testing.T) {
	tests := []struct {
		name    string
		visible bool
		status  MatchStatus
		want    bool
	}{
		{"visible upcoming", true, StatusUpcoming, true},
		{"visible live", true, StatusLive, true},
		{"visible completed", true, StatusCompleted, false},
		{"visible cancelled", true, StatusCancelled, false},
		{"hidden upcoming", false, StatusUpcoming, false},
		{"hidden live", false, StatusLive, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Match{ID: "m1", ShowOnFrontend: tt.visible, Status: tt.status}
			assert.Equal(t, tt.want, IsBettable(m))
			if tt.want {
				assert.NoError(t, CheckBettable(m))
			} else {
				assert.ErrorIs(t, CheckBettable(m), apperr.MatchNotBettable)
			}
		})
	}
}

func TestOddsFor(t *testing.T) {
	m := Match{ID: "m1", HomeOdds: odds("1.85"), AwayOdds: odds("4.20")}

	got, err := OddsFor(m, BetHome)
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("1.85")))

	_, err = OddsFor(m, BetDraw)
	assert.ErrorIs(t, err, apperr.SelectionUnavailable)

	_, err = OddsFor(m, BetType("over"))
	assert.ErrorIs(t, err, apperr.InvalidInput)
}

func TestCanTransition(t *testing.T) {
	all := []MatchStatus{StatusUpcoming, StatusLive, StatusCompleted, StatusCancelled}
	allowed := map[[2]MatchStatus]bool{
		{StatusUpcoming, StatusLive}:      true,
		{StatusUpcoming, StatusCompleted}: true,
		{StatusUpcoming, StatusCancelled}: true,
		{StatusLive, StatusCompleted}:     true,
		{StatusLive, StatusCancelled}:     true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]MatchStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.ElementsMatch(t, []string{"upcoming", "live"}, SourcesFor(StatusCompleted))
	assert.Equal(t, []string{"upcoming"}, SourcesFor(StatusLive))
	assert.Empty(t, SourcesFor(StatusUpcoming))
}

func TestValidateOdds(t *testing.T) {
	assert.NoError(t, ValidateOdds(decimal.NullDecimal{}))
	assert.NoError(t, ValidateOdds(odds("1.0")))
	assert.ErrorIs(t, ValidateOdds(odds("0.95")), apperr.InvalidInput)
}

func TestViewIncludes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)

	started := Match{Status: StatusUpcoming, MatchDate: past}
	live := Match{Status: StatusLive, MatchDate: future}
	soon := Match{Status: StatusUpcoming, MatchDate: future}
	done := Match{Status: StatusCompleted, MatchDate: past}
	off := Match{Status: StatusCancelled, MatchDate: past}

	assert.True(t, ViewLive.Includes(started, now))
	assert.True(t, ViewLive.Includes(live, now))
	assert.False(t, ViewLive.Includes(done, now))
	assert.False(t, ViewLive.Includes(off, now))

	assert.True(t, ViewUpcoming.Includes(soon, now))
	assert.False(t, ViewUpcoming.Includes(started, now))
	assert.False(t, ViewUpcoming.Includes(live, now))

	assert.True(t, ViewResults.Includes(done, now))
	assert.False(t, ViewResults.Includes(off, now))

	assert.True(t, ViewAll.Includes(off, now))
}

func TestSportIs(t *testing.T) {
	m := Match{Sport: "Soccer", CategoryKey: "soccer_epl"}
	assert.True(t, SportIs(m, ""))
	assert.True(t, SportIs(m, "soccer"))
	assert.True(t, SportIs(m, "SOCCER_EPL"))
	assert.False(t, SportIs(m, "socc"))
	assert.False(t, SportIs(m, "epl"))
}

func TestParsers(t *testing.T) {
	_, err := ParseMatchStatus("postponed")
	assert.Error(t, err)
	st, err := ParseMatchStatus("live")
	require.NoError(t, err)
	assert.True(t, st.Open())

	_, err = ParseBetType("1")
	assert.Error(t, err)
	_, err = ParseView("today")
	assert.Error(t, err)
}
