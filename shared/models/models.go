package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the authoritative write model held by the account store.
// Balance is the only field that changes after creation.
type Account struct {
	ID         string          `json:"account_id"`
	CustomerID int             `json:"customer_id"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Transfer is an immutable record of a committed movement of funds.
type Transfer struct {
	TransactionID string          `json:"transaction_id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"transfer_amount"`
	ExecutedAt    time.Time       `json:"timestamp"`
}

// Involves reports whether accountID is the sender or the receiver.
func (t Transfer) Involves(accountID string) bool {
	return t.FromAccountID == accountID || t.ToAccountID == accountID
}
