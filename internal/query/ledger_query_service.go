package query

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

// LedgerQueryService serves reads straight from the in-memory store. Reads of
// a single account take that account's lock so they never see a transfer
// half-applied. Unknown ids are answered before the guard is touched.
type LedgerQueryService struct {
	accounts  *repository.AccountStore
	transfers *repository.TransferLog
	guard     *lock.Guard
}

func NewLedgerQueryService(accounts *repository.AccountStore, transfers *repository.TransferLog, guard *lock.Guard) *LedgerQueryService {
	return &LedgerQueryService{accounts: accounts, transfers: transfers, guard: guard}
}

// Stats is a point-in-time size of the ledger.
type Stats struct {
	Accounts  int `json:"accounts"`
	Transfers int `json:"transfers"`
}

func (s *LedgerQueryService) GetAccount(ctx context.Context, q cqrs.GetAccountQuery) (*models.Account, error) {
	if !s.accounts.Exists(q.AccountID) {
		return nil, apperr.AccountNotFound(q.AccountID)
	}
	var account models.Account
	err := s.guard.WithLock(ctx, []string{q.AccountID}, func(context.Context) error {
		var err error
		account, err = s.accounts.Get(q.AccountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *LedgerQueryService) GetBalance(ctx context.Context, q cqrs.GetBalanceQuery) (decimal.Decimal, error) {
	account, err := s.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: q.AccountID})
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetHistory returns the account's transfers oldest first. Holding the lock
// keeps the history consistent with the balance read at the same moment.
func (s *LedgerQueryService) GetHistory(ctx context.Context, q cqrs.GetHistoryQuery) ([]models.Transfer, error) {
	if !s.accounts.Exists(q.AccountID) {
		return nil, apperr.AccountNotFound(q.AccountID)
	}
	var history []models.Transfer
	err := s.guard.WithLock(ctx, []string{q.AccountID}, func(context.Context) error {
		if _, err := s.accounts.Get(q.AccountID); err != nil {
			return err
		}
		history = s.transfers.HistoryFor(q.AccountID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// ListCustomerAccounts returns the customer's accounts in creation order;
// unknown customers have none. Each account is read under its own lock, so
// every balance is a committed value, but the list is not one snapshot across
// accounts.
func (s *LedgerQueryService) ListCustomerAccounts(ctx context.Context, q cqrs.ListCustomerAccountsQuery) ([]models.Account, error) {
	ids := s.accounts.IDsByCustomer(q.CustomerID)
	accounts := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		account, err := s.GetAccount(ctx, cqrs.GetAccountQuery{AccountID: id})
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, nil
}

// ListCustomerTransfers returns transfers touching any of the customer's
// accounts in commit order. A transfer between two of the customer's own
// accounts appears once.
func (s *LedgerQueryService) ListCustomerTransfers(_ context.Context, q cqrs.ListCustomerTransfersQuery) ([]models.Transfer, error) {
	return s.transfers.HistoryForAny(s.accounts.IDsByCustomer(q.CustomerID)), nil
}

func (s *LedgerQueryService) Stats() Stats {
	return Stats{Accounts: s.accounts.Count(), Transfers: s.transfers.Count()}
}
