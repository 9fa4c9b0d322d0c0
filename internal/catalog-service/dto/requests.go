package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchRequest é o cadastro manual de partida pelo admin.
// Odds ausentes (null) deixam a seleção fechada para apostas.
type MatchRequest struct {
	HomeTeam       string              `json:"home_team" validate:"required,max=120"`
	AwayTeam       string              `json:"away_team" validate:"required,max=120,nefield=HomeTeam"`
	Sport          string              `json:"sport" validate:"required,max=60"`
	CategoryKey    string              `json:"category_key" validate:"omitempty,max=120"`
	MatchDate      time.Time           `json:"match_date" validate:"required"`
	HomeOdds       decimal.NullDecimal `json:"home_odds"`
	DrawOdds       decimal.NullDecimal `json:"draw_odds"`
	AwayOdds       decimal.NullDecimal `json:"away_odds"`
	ShowOnFrontend bool                `json:"show_on_frontend"`
}

type OddsRequest struct {
	HomeOdds decimal.NullDecimal `json:"home_odds"`
	DrawOdds decimal.NullDecimal `json:"draw_odds"`
	AwayOdds decimal.NullDecimal `json:"away_odds"`
}

type VisibilityRequest struct {
	Show *bool `json:"show_on_frontend" validate:"required"`
}

// StatusRequest troca o status. completed/cancelled e o resultado vêm só da liquidação da partida.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=upcoming live completed cancelled"`
}

type GameAPIRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Provider string `json:"provider" validate:"omitempty,max=60"`
	APIURL   string `json:"api_url" validate:"required,url"`
	APIKey   string `json:"api_key" validate:"omitempty,max=256"`
	IsActive *bool  `json:"is_active"`
}

type ToggleRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}
