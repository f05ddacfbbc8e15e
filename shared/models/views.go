package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AccountView is the API projection of an account. Amounts are rendered as
// JSON numbers with exactly two fractional digits.
type AccountView struct {
	AccountID  string      `json:"account_id"`
	CustomerID int         `json:"customer_id"`
	Balance    json.Number `json:"balance"`
	CreatedAt  time.Time   `json:"created_at"`
}

// BalanceView is returned by the balance endpoint.
type BalanceView struct {
	AccountID      string      `json:"account_id"`
	CurrentBalance json.Number `json:"current_balance"`
}

// TransferView is the API projection of a committed transfer.
type TransferView struct {
	TransactionID  string      `json:"transaction_id"`
	FromAccountID  string      `json:"from_account_id"`
	ToAccountID    string      `json:"to_account_id"`
	TransferAmount json.Number `json:"transfer_amount"`
	Timestamp      time.Time   `json:"timestamp"`
}

// AccountSnapshot is the Redis read model maintained from ledger events.
// It lags the authoritative store and is meant for consumers outside the ledger.
type AccountSnapshot struct {
	AccountID         string          `json:"accountId"`
	CustomerID        int             `json:"customerId,omitempty"`
	Balance           decimal.Decimal `json:"balance"`
	LastTransactionID string          `json:"lastTransactionId,omitempty"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func amountNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func NewAccountView(a Account) AccountView {
	return AccountView{
		AccountID:  a.ID,
		CustomerID: a.CustomerID,
		Balance:    amountNumber(a.Balance),
		CreatedAt:  a.CreatedAt,
	}
}

func NewBalanceView(accountID string, balance decimal.Decimal) BalanceView {
	return BalanceView{AccountID: accountID, CurrentBalance: amountNumber(balance)}
}

func NewTransferView(t Transfer) TransferView {
	return TransferView{
		TransactionID:  t.TransactionID,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		TransferAmount: amountNumber(t.Amount),
		Timestamp:      t.ExecutedAt,
	}
}

// NewTransferViews never returns nil so empty histories encode as [].
func NewTransferViews(transfers []Transfer) []TransferView {
	views := make([]TransferView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, NewTransferView(t))
	}
	return views
}
