package events

// Evento publicado no tópico "bet_placed" após o commit da aposta.
type BetPlaced struct {
	EventID              string `json:"event_id"`
	BetID                string `json:"bet_id"`
	UserID               string `json:"user_id"`
	MatchID              string `json:"match_id"`
	BetType              string `json:"bet_type"`
	StakeMinor           int64  `json:"stake_minor"`
	Odds                 string `json:"odds"` // decimal como string para não perder precisão
	PotentialPayoutMinor int64  `json:"potential_payout_minor"`
	ReferenceID          string `json:"reference_id"`
	TsUnixMs             int64  `json:"ts_unix_ms"`
}
