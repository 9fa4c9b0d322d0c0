package events

// Evento publicado no tópico "bet_settled" quando uma aposta sai de pending.
type BetSettled struct {
	EventID     string `json:"event_id"`
	BetID       string `json:"bet_id"`
	UserID      string `json:"user_id"`
	MatchID     string `json:"match_id"`
	Outcome     string `json:"outcome"` // "won" | "lost" | "cancelled"
	StakeMinor  int64  `json:"stake_minor"`
	CreditMinor int64  `json:"credit_minor"` // payout, reembolso ou 0
	SettledBy   string `json:"settled_by"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
