// Package catalog guarda partidas e odds e decide se uma partida aceita apostas.
package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

// MatchStatus é o ciclo de vida de uma partida
type MatchStatus string

const (
	StatusUpcoming  MatchStatus = "upcoming"
	StatusLive      MatchStatus = "live"
	StatusCompleted MatchStatus = "completed"
	StatusCancelled MatchStatus = "cancelled"
)

func ParseMatchStatus(s string) (MatchStatus, error) {
	switch st := MatchStatus(s); st {
	case StatusUpcoming, StatusLive, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", apperr.InvalidInput.With("unknown match status %q", s)
}

// Open indica se o status aceita apostas
func (s MatchStatus) Open() bool { return s == StatusUpcoming || s == StatusLive }

// Final indica se a partida já foi encerrada
func (s MatchStatus) Final() bool { return s == StatusCompleted || s == StatusCancelled }

// upcoming -> live -> {completed, cancelled}; de um status final não se sai
var transitions = map[MatchStatus][]MatchStatus{
	StatusUpcoming: {StatusLive, StatusCompleted, StatusCancelled},
	StatusLive:     {StatusCompleted, StatusCancelled},
}

func (s MatchStatus) CanTransition(to MatchStatus) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// SourcesFor lista os status de onde se chega a to
func SourcesFor(to MatchStatus) []string {
	var out []string
	for _, from := range []MatchStatus{StatusUpcoming, StatusLive, StatusCompleted, StatusCancelled} {
		if from.CanTransition(to) {
			out = append(out, string(from))
		}
	}
	return out
}

// BetType é a seleção do mercado 1x2
type BetType string

const (
	BetHome BetType = "home"
	BetDraw BetType = "draw"
	BetAway BetType = "away"
)

func ParseBetType(s string) (BetType, error) {
	switch bt := BetType(s); bt {
	case BetHome, BetDraw, BetAway:
		return bt, nil
	}
	return "", apperr.InvalidInput.With("unknown bet type %q", s)
}

// MinOdds é a menor odd decimal aceita
var MinOdds = decimal.NewFromInt(1)

type Match struct {
	ID             string              `json:"id"`
	ExternalID     string              `json:"external_id,omitempty"`
	APISourceID    string              `json:"api_source_id,omitempty"`
	HomeTeam       string              `json:"home_team"`
	AwayTeam       string              `json:"away_team"`
	Sport          string              `json:"sport"`
	CategoryKey    string              `json:"category_key,omitempty"`
	MatchDate      time.Time           `json:"match_date"`
	Status         MatchStatus         `json:"status"`
	Result         BetType             `json:"result,omitempty"`
	HomeOdds       decimal.NullDecimal `json:"home_odds"`
	DrawOdds       decimal.NullDecimal `json:"draw_odds"`
	AwayOdds       decimal.NullDecimal `json:"away_odds"`
	ShowOnFrontend bool                `json:"show_on_frontend"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// IsBettable: visível no site e com status aberto.
// Visibilidade é independente do status; os dois precisam permitir.
func IsBettable(m Match) bool {
	return m.ShowOnFrontend && m.Status.Open()
}

// OddsFor devolve a odd atual da seleção. Sem odd publicada, a seleção não aceita aposta.
func OddsFor(m Match, bt BetType) (decimal.Decimal, error) {
	var o decimal.NullDecimal
	switch bt {
	case BetHome:
		o = m.HomeOdds
	case BetDraw:
		o = m.DrawOdds
	case BetAway:
		o = m.AwayOdds
	default:
		return decimal.Zero, apperr.InvalidInput.With("unknown bet type %q", bt)
	}
	if !o.Valid || o.Decimal.LessThan(MinOdds) {
		return decimal.Zero, apperr.SelectionUnavailable.With("no %s odds for match %s", bt, m.ID)
	}
	return o.Decimal, nil
}

// CheckBettable devolve MatchNotBettable com o motivo.
func CheckBettable(m Match) error {
	if !m.ShowOnFrontend {
		return apperr.MatchNotBettable.With("match %s is hidden", m.ID)
	}
	if !m.Status.Open() {
		return apperr.MatchNotBettable.With("match %s is %s", m.ID, m.Status)
	}
	return nil
}

// ValidateOdds aceita odd ausente ou >= 1.0
func ValidateOdds(o decimal.NullDecimal) error {
	if o.Valid && o.Decimal.LessThan(MinOdds) {
		return apperr.InvalidInput.With("odds must be >= 1.0, got %s", o.Decimal)
	}
	return nil
}

// View é o filtro da listagem pública
type View string

const (
	ViewAll      View = ""
	ViewLive     View = "live"
	ViewUpcoming View = "upcoming"
	ViewResults  View = "results"
)

func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewAll, ViewLive, ViewUpcoming, ViewResults:
		return v, nil
	}
	return "", apperr.InvalidInput.With("unknown view %q", s)
}

// Includes aplica a regra da aba do site:
// live = status live ou já começou e não terminou; upcoming = futuro e upcoming; results = completed.
func (v View) Includes(m Match, now time.Time) bool {
	switch v {
	case ViewLive:
		return m.Status == StatusLive || (!m.MatchDate.After(now) && !m.Status.Final())
	case ViewUpcoming:
		return m.MatchDate.After(now) && m.Status == StatusUpcoming
	case ViewResults:
		return m.Status == StatusCompleted
	default:
		return true
	}
}

// SportIs compara esporte ou categoria por igualdade, sem diferenciar maiúsculas.
func SportIs(m Match, sport string) bool {
	if sport == "" {
		return true
	}
	return strings.EqualFold(m.Sport, sport) || (m.CategoryKey != "" && strings.EqualFold(m.CategoryKey, sport))
}
