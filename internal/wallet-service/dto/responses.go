package dto

import (
	"github.com/radieske/sports-bet-ledger/internal/ledger"
	"github.com/radieske/sports-bet-ledger/internal/wallet-service/repo"
)

type WalletResponse struct {
	UserID       string `json:"user_id"`
	BalanceMinor int64  `json:"balance_minor"`
}

type WithdrawalResponse struct {
	Withdrawal repo.Withdrawal `json:"withdrawal"`
	Replayed   bool            `json:"replayed"`
}

type WithdrawalListResponse struct {
	Withdrawals []repo.Withdrawal `json:"withdrawals"`
	Limit       int               `json:"limit"`
	Offset      int               `json:"offset"`
}

type DepositListResponse struct {
	Deposits []repo.DepositIntent `json:"deposits"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

type WalletListResponse struct {
	Wallets []ledger.Wallet `json:"wallets"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type EntryListResponse struct {
	Entries []ledger.Entry `json:"entries"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

type GatewayListResponse struct {
	Gateways []repo.Gateway `json:"gateways"`
}
