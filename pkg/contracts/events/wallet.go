package events

// DepositCompleted é publicado após o callback do gateway creditar o ledger.
type DepositCompleted struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	GatewayID     string `json:"gateway_id"`
	AmountMinor   int64  `json:"amount_minor"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}

// WithdrawalUpdated é publicado a cada transição de um saque.
type WithdrawalUpdated struct {
	EventID      string `json:"event_id"`
	WithdrawalID string `json:"withdrawal_id"`
	UserID       string `json:"user_id"`
	AmountMinor  int64  `json:"amount_minor"`
	OldStatus    string `json:"old_status,omitempty"`
	Status       string `json:"status"` // "pending" | "completed" | "rejected"
	TsUnixMs     int64  `json:"ts_unix_ms"`
}
