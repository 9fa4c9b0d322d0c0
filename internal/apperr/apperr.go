package apperr

import (
	"errors"
	"fmt"
)

// Kind classifica o erro para o chamador decidir se corrige a entrada,
// desiste, trata como idempotente ou tenta de novo.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindPrecondition
	KindConflict
	KindUnavailable
	KindNotFound
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPrecondition:
		return "precondition_failed"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "dependency_unavailable"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error é o erro de domínio exposto pelos serviços.
// Dois erros são equivalentes para errors.Is quando têm o mesmo Code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return e.Code + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// With devolve uma cópia com mensagem específica, mantendo Kind e Code.
func (e *Error) With(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: fmt.Sprintf(format, args...), Err: e.Err}
}

// Wrap devolve uma cópia encadeando a causa.
func (e *Error) Wrap(err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Msg: e.Msg, Err: err}
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	// Validação de entrada
	InvalidStake   = New(KindValidation, "invalid_stake", "stake outside configured limits")
	BelowMinimum   = New(KindValidation, "below_minimum", "amount below configured minimum")
	InvalidInput   = New(KindValidation, "invalid_input", "invalid request")
	AmountMismatch = New(KindValidation, "amount_mismatch", "callback amount does not match deposit")

	// Pré-condições de negócio
	MatchNotBettable     = New(KindPrecondition, "match_not_bettable", "match is not open for betting")
	SelectionUnavailable = New(KindPrecondition, "selection_unavailable", "no odds for selection")
	InsufficientBalance  = New(KindPrecondition, "insufficient_balance", "balance does not cover debit")
	AlreadySettled       = New(KindPrecondition, "already_settled", "bet is already settled")
	InvalidTransition    = New(KindPrecondition, "invalid_transition", "status transition not allowed")
	Maintenance          = New(KindPrecondition, "maintenance", "platform under maintenance")
	DepositsDisabled     = New(KindPrecondition, "deposits_disabled", "deposits are disabled")
	WithdrawalsDisabled  = New(KindPrecondition, "withdrawals_disabled", "withdrawals are disabled")
	GatewayUnavailable   = New(KindPrecondition, "gateway_unavailable", "payment gateway is not active")

	// Conflitos
	DuplicateReference = New(KindConflict, "duplicate_reference", "reference already recorded")
	ConcurrentWrite    = New(KindConflict, "concurrent_write", "concurrent write detected")
	MatchReferenced    = New(KindConflict, "match_referenced", "match has bets")

	Unavailable  = New(KindUnavailable, "dependency_unavailable", "dependency unavailable")
	NotFound     = New(KindNotFound, "not_found", "resource not found")
	Unauthorized = New(KindUnauthorized, "unauthorized", "authentication required")
	Forbidden    = New(KindForbidden, "forbidden", "not allowed")
)

// KindOf retorna o Kind do erro, ou 0 se não for um erro de domínio.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf retorna o Code do erro, ou "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Retryable indica se o chamador pode repetir a operação com backoff.
// Só indisponibilidade de dependência é repetível; o núcleo nunca repete sozinho.
func Retryable(err error) bool {
	return KindOf(err) == KindUnavailable
}
