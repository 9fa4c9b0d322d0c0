package dto

import "encoding/json"

// DepositRequest inicia um depósito; o crédito só vem no callback do gateway
type DepositRequest struct {
	AmountMinor int64  `json:"amount_minor" validate:"required,gt=0"`
	GatewayID   string `json:"gateway_id" validate:"required,uuid"`
}

type WithdrawalRequest struct {
	AmountMinor int64           `json:"amount_minor" validate:"required,gt=0"`
	Method      string          `json:"method,omitempty" validate:"omitempty,max=32"`
	BankDetails json.RawMessage `json:"bank_details,omitempty"`
}

// DecisionRequest é a aprovação ou rejeição de um saque pelo admin
type DecisionRequest struct {
	Notes string `json:"admin_notes,omitempty" validate:"max=500"`
}

type GatewayRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Type        string `json:"type" validate:"required,oneof=upi card netbanking wallet"`
	CheckoutURL string `json:"checkout_url" validate:"required,url"`
	WebhookURL  string `json:"webhook_url,omitempty" validate:"omitempty,url"`
	APIKey      string `json:"api_key,omitempty"`
	SecretKey   string `json:"secret_key,omitempty"`
	IsActive    bool   `json:"is_active"`
	IsTestMode  bool   `json:"is_test_mode"`
}

// ProfileRequest atualiza o cadastro do próprio usuário
type ProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=120"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,e164"`
}

type ToggleRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}
