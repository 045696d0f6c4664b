// Package model defines domain entities for the application.
package model

import "time"

// Transaction type constants for the credit ledger.
const (
	TxPurchase        = "PURCHASE"
	TxAPICall         = "API_CALL"
	TxRefund          = "REFUND"
	TxAdminAdjustment = "ADMIN_ADJUSTMENT"
)

// ValidTransactionTypes contains all valid transaction type values.
var ValidTransactionTypes = []string{TxPurchase, TxAPICall, TxRefund, TxAdminAdjustment}

// CreditBalance is the one-to-one balance row for a user.
// Invariant: Credits == TotalEarned - TotalSpent, and Credits >= 0.
type CreditBalance struct {
	UserID      string    `json:"user_id"`
	Credits     int64     `json:"credits"`
	TotalEarned int64     `json:"total_earned"`
	TotalSpent  int64     `json:"total_spent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreditTransaction is one append-only audit row. Amount is signed:
// positive for credits, negative for debits. BalanceAfter snapshots the
// balance the moment the row was written.
type CreditTransaction struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         string    `json:"transaction_type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// BalanceResponse is the dashboard view of a balance.
type BalanceResponse struct {
	Credits     int64 `json:"credits"`
	TotalEarned int64 `json:"total_earned"`
	TotalSpent  int64 `json:"total_spent"`
}

// ToResponse converts a CreditBalance to its public form.
func (b *CreditBalance) ToResponse() BalanceResponse {
	return BalanceResponse{
		Credits:     b.Credits,
		TotalEarned: b.TotalEarned,
		TotalSpent:  b.TotalSpent,
	}
}
