package topics

const (
	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"

	// Carteira
	DepositCompleted  = "deposit_completed"
	WithdrawalUpdated = "withdrawal_updated"

	// DLQ dos consumidores de eventos de ledger
	LedgerEventsDLQ = "ledger_events_dlq"
)

// Ledger lista os tópicos consumidos pelo stats-worker
var Ledger = []string{BetPlaced, BetSettled, DepositCompleted, WithdrawalUpdated}
