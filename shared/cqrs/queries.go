package cqrs

// ---------- Account queries ----------

// GetAccountQuery fetches a single account by id.
type GetAccountQuery struct {
	AccountID string
}

// GetBalanceQuery fetches the current balance of an account.
type GetBalanceQuery struct {
	AccountID string
}

// GetHistoryQuery fetches every transfer an account took part in, oldest first.
type GetHistoryQuery struct {
	AccountID string
}

// ---------- Customer queries ----------

// ListCustomerAccountsQuery fetches all accounts belonging to a customer.
type ListCustomerAccountsQuery struct {
	CustomerID int
}

// ListCustomerTransfersQuery fetches transfers touching any of a customer's accounts.
type ListCustomerTransfersQuery struct {
	CustomerID int
}
