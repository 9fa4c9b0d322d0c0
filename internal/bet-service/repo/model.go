package repo

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
	"github.com/radieske/sports-bet-ledger/internal/catalog"
)

// Status é o estado da aposta: pending -> won | lost | cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusWon, StatusLost, StatusCancelled:
		return st, nil
	}
	return "", apperr.InvalidInput.With("unknown bet status %q", s)
}

// IsTerminal: won, lost e cancelled não mudam mais
func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusCancelled
}

// Bet é o modelo persistido no Postgres.
// Odds e PotentialPayoutMinor são fixados na colocação e nunca relidos da partida.
type Bet struct {
	ID                   string          `json:"id"`
	UserID               string          `json:"user_id"`
	MatchID              string          `json:"match_id"`
	BetType              catalog.BetType `json:"bet_type"`
	StakeMinor           int64           `json:"stake_minor"`
	Odds                 decimal.Decimal `json:"odds"`
	PotentialPayoutMinor int64           `json:"potential_payout_minor"`
	Status               Status          `json:"status"`
	ReferenceID          string          `json:"-"`
	PlacedAt             time.Time       `json:"placed_at"`
	SettledAt            *time.Time      `json:"settled_at,omitempty"`

	// preenchidos nas listagens
	HomeTeam string `json:"home_team,omitempty"`
	AwayTeam string `json:"away_team,omitempty"`
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// PotentialPayout = stake × odds, arredondado para baixo em paise.
// Produto acima de int64 vira InvalidStake em vez de truncar.
func PotentialPayout(stakeMinor int64, odds decimal.Decimal) (int64, error) {
	p := decimal.NewFromInt(stakeMinor).Mul(odds).Floor()
	if p.GreaterThan(maxMinor) {
		return 0, apperr.InvalidStake.With("payout of %d × %s exceeds the ledger range", stakeMinor, odds)
	}
	return p.IntPart(), nil
}

// Filter filtra a listagem administrativa
type Filter struct {
	Status  Status
	MatchID string
	Search  string
	Limit   int
	Offset  int
}

// Stats resume as apostas para o painel administrativo
type Stats struct {
	Total             int64 `json:"total"`
	Pending           int64 `json:"pending"`
	TotalStakedMinor  int64 `json:"total_staked_minor"`
	TotalPaidOutMinor int64 `json:"total_paid_out_minor"`
}
