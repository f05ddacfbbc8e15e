package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	AccountCreated    = "account.created"
	TransferCompleted = "transfer.completed"
)

// LedgerEventsStream is the default stream name; deployments may override it.
const LedgerEventsStream = "ledger.events"

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

type AccountCreatedEvent struct {
	AccountID  string          `json:"accountId"`
	CustomerID int             `json:"customerId"`
	Balance    decimal.Decimal `json:"balance"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// TransferCompletedEvent carries both post-commit balances so consumers can
// maintain snapshots without calling back into the ledger.
type TransferCompletedEvent struct {
	TransactionID string          `json:"transactionId"`
	FromAccountID string          `json:"fromAccountId"`
	ToAccountID   string          `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	FromBalance   decimal.Decimal `json:"fromBalance"`
	ToBalance     decimal.Decimal `json:"toBalance"`
	ExecutedAt    time.Time       `json:"executedAt"`
}
