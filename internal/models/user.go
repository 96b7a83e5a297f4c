package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Wallet holds a user's simulated funds.
type Wallet struct {
	UserID           uuid.UUID `json:"user_id"`
	Balance          float64   `json:"balance"`
	Currency         string    `json:"currency"`
	TotalDeposits    float64   `json:"total_deposits"`
	TotalWithdrawals float64   `json:"total_withdrawals"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CanAfford reports whether the wallet covers the given amount.
func (w *Wallet) CanAfford(amount float64) bool {
	return w.Balance >= amount
}

// WalletTxnType classifies a wallet transaction.
type WalletTxnType string

const (
	TxnDeposit     WalletTxnType = "DEPOSIT"
	TxnWithdrawal  WalletTxnType = "WITHDRAWAL"
	TxnOrderDebit  WalletTxnType = "ORDER_DEBIT"
	TxnOrderCredit WalletTxnType = "ORDER_CREDIT"
	TxnEntryFee    WalletTxnType = "TOURNAMENT_ENTRY"
)

// WalletTransaction is an audit record of a wallet balance change.
type WalletTransaction struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.UUID     `json:"user_id"`
	Type      WalletTxnType `json:"type"`
	Amount    float64       `json:"amount"`
	Balance   float64       `json:"balance"` // Balance after this transaction
	Reference string        `json:"reference,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// WatchlistItem is a symbol pinned to a user's watchlist.
type WatchlistItem struct {
	UserID  uuid.UUID `json:"user_id"`
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}
