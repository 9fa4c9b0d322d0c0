// Package ledger é o registro append-only de todo evento que afeta saldo.
// O saldo de um usuário é sempre a soma das suas entradas.
package ledger

import (
	"time"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

// Kind é o tipo de uma entrada do ledger. Conjunto fechado.
type Kind string

const (
	KindDeposit           Kind = "deposit"
	KindWithdrawalHold    Kind = "withdrawal_hold"
	KindWithdrawalRelease Kind = "withdrawal_release"
	KindBetStake          Kind = "bet_stake"
	KindBetPayout         Kind = "bet_payout"
	KindBetRefund         Kind = "bet_refund"
)

// Kinds lista todos os tipos válidos
var Kinds = []Kind{
	KindDeposit, KindWithdrawalHold, KindWithdrawalRelease,
	KindBetStake, KindBetPayout, KindBetRefund,
}

func (k Kind) Valid() bool {
	switch k {
	case KindDeposit, KindWithdrawalHold, KindWithdrawalRelease,
		KindBetStake, KindBetPayout, KindBetRefund:
		return true
	}
	return false
}

// IsCredit indica se o tipo credita (valor positivo) ou debita (negativo).
func (k Kind) IsCredit() bool {
	switch k {
	case KindDeposit, KindBetPayout, KindBetRefund:
		return true
	}
	return false
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", apperr.InvalidInput.With("unknown ledger kind %q", s)
	}
	return k, nil
}

// Entry é um fato imutável. AmountMinor é assinado, em paise.
type Entry struct {
	Seq                 int64     `json:"seq"`
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id"`
	Kind                Kind      `json:"kind"`
	AmountMinor         int64     `json:"amount_minor"`
	ReferenceID         string    `json:"reference_id"`
	RelatedBetID        string    `json:"related_bet_id,omitempty"`
	RelatedWithdrawalID string    `json:"related_withdrawal_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Validate confere tipo, sinal e chave de idempotência.
func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return apperr.InvalidInput.With("unknown ledger kind %q", e.Kind)
	}
	if e.ReferenceID == "" {
		return apperr.InvalidInput.With("reference_id required")
	}
	switch {
	case e.AmountMinor == 0:
		return apperr.InvalidInput.With("zero amount for %s", e.Kind)
	case e.Kind.IsCredit() && e.AmountMinor < 0:
		return apperr.InvalidInput.With("%s must be positive", e.Kind)
	case !e.Kind.IsCredit() && e.AmountMinor > 0:
		return apperr.InvalidInput.With("%s must be negative", e.Kind)
	}
	return nil
}

// Fold soma as entradas. Balance(user) = Fold(entriesFor(user)).
func Fold(entries []Entry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.AmountMinor
	}
	return sum
}

// Page é uma fatia de entradas em ordem de Seq, com cursor para continuar.
type Page struct {
	Entries []Entry `json:"entries"`
	Next    int64   `json:"next"` // passe como `after` na próxima chamada
}

// Wallet é a projeção materializada de um usuário (listagens administrativas).
type Wallet struct {
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name,omitempty"`
	Email        string    `json:"email,omitempty"`
	BalanceMinor int64     `json:"balance_minor"`
	UpdatedAt    time.Time `json:"updated_at"`
}
