package cqrs

import "github.com/shopspring/decimal"

type CreateAccountCommand struct {
	CustomerID     int
	InitialDeposit decimal.Decimal
}

type ExecuteTransferCommand struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
}
