package ledger

import (
	"context"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

// WouldCoverDebit checa se o saldo cobre um débito de amount.
// Só existe em cima de uma Tx: checagem e débito acontecem na mesma transação,
// com a partição do usuário travada.
func WouldCoverDebit(ctx context.Context, tx Tx, amount int64) (bool, error) {
	if amount <= 0 {
		return false, apperr.InvalidInput.With("debit must be positive, got %d", amount)
	}
	bal, err := tx.Balance(ctx)
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// Debit anexa um débito de amount (positivo) se o saldo cobrir.
// Caso contrário falha com apperr.InsufficientBalance sem gravar nada.
func Debit(ctx context.Context, tx Tx, e Entry, amount int64) (Entry, error) {
	ok, err := WouldCoverDebit(ctx, tx, amount)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		return Entry{}, apperr.InsufficientBalance.With("balance does not cover %d", amount)
	}

	e.AmountMinor = -amount
	out, err := tx.Append(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	return out[0], nil
}
