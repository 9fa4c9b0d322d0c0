package dto

import "github.com/radieske/sports-bet-ledger/internal/bet-service/repo"

type PlaceBetResponse struct {
	Bet      repo.Bet `json:"bet"`
	Replayed bool     `json:"replayed"`
}

type BetListResponse struct {
	Bets   []repo.Bet `json:"bets"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
