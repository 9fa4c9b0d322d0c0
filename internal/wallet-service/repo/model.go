package repo

import (
	"encoding/json"
	"time"

	"github.com/radieske/sports-bet-ledger/internal/apperr"
)

// WithdrawalStatus: pending -> approved -> completed | pending -> rejected
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalApproved  WithdrawalStatus = "approved"
	WithdrawalCompleted WithdrawalStatus = "completed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

func ParseWithdrawalStatus(s string) (WithdrawalStatus, error) {
	switch st := WithdrawalStatus(s); st {
	case WithdrawalPending, WithdrawalApproved, WithdrawalCompleted, WithdrawalRejected:
		return st, nil
	}
	return "", apperr.InvalidInput.With("unknown withdrawal status %q", s)
}

func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalRejected
}

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:  {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved: {WithdrawalCompleted},
}

// CanTransition consulta a tabela de transições
func (s WithdrawalStatus) CanTransition(to WithdrawalStatus) bool {
	for _, next := range withdrawalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type Withdrawal struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	AmountMinor int64            `json:"amount_minor"`
	Method      string           `json:"method"`
	BankDetails json.RawMessage  `json:"bank_details"`
	Status      WithdrawalStatus `json:"status"`
	ReferenceID string           `json:"-"`
	AdminNotes  string           `json:"admin_notes,omitempty"`
	ProcessedBy string           `json:"processed_by,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}

// GatewayType é o meio de pagamento oferecido pelo gateway
type GatewayType string

const (
	GatewayUPI        GatewayType = "upi"
	GatewayCard       GatewayType = "card"
	GatewayNetbanking GatewayType = "netbanking"
	GatewayWallet     GatewayType = "wallet"
)

func ParseGatewayType(s string) (GatewayType, error) {
	switch t := GatewayType(s); t {
	case GatewayUPI, GatewayCard, GatewayNetbanking, GatewayWallet:
		return t, nil
	}
	return "", apperr.InvalidInput.With("unknown gateway type %q", s)
}

// Gateway é um provedor de pagamento. Chaves nunca saem em JSON.
type Gateway struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        GatewayType `json:"type"`
	CheckoutURL string      `json:"checkout_url"`
	WebhookURL  string      `json:"webhook_url,omitempty"`
	APIKey      string      `json:"-"`
	SecretKey   string      `json:"-"`
	IsActive    bool        `json:"is_active"`
	IsTestMode  bool        `json:"is_test_mode"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// DepositStatus: pending -> completed | failed
type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositCompleted DepositStatus = "completed"
	DepositFailed    DepositStatus = "failed"
)

// DepositIntent é o depósito iniciado pelo usuário e confirmado pelo callback do gateway
type DepositIntent struct {
	ID               string        `json:"transaction_id"`
	UserID           string        `json:"user_id"`
	GatewayID        string        `json:"gateway_id"`
	AmountMinor      int64         `json:"amount_minor"`
	Status           DepositStatus `json:"status"`
	GatewayReference string        `json:"gateway_reference,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}
