package repository

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/money"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/utils"
)

const accountIDPrefix = "acc"

// AccountStore is the authoritative, memory-resident account table.
//
// The internal mutex only keeps the map and records memory-safe. Atomicity
// across accounts is the caller's job: Adjust must run while the caller holds
// the account's lock from the lock package.
type AccountStore struct {
	mu         sync.RWMutex
	accounts   map[string]*models.Account
	order      []string
	byCustomer map[int][]string

	newID func() (string, error)
	now   func() time.Time
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts:   make(map[string]*models.Account),
		byCustomer: make(map[int][]string),
		newID:      func() (string, error) { return utils.GenerateID(accountIDPrefix) },
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a new account with a fresh id and returns a copy of it.
func (s *AccountStore) Create(customerID int, initialBalance decimal.Decimal) (models.Account, error) {
	if err := money.ValidateNonNegative(initialBalance); err != nil {
		return models.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	for id == "" || s.accounts[id] != nil {
		var err error
		if id, err = s.newID(); err != nil {
			return models.Account{}, fmt.Errorf("failed to allocate account id: %w", err)
		}
	}

	account := &models.Account{
		ID:         id,
		CustomerID: customerID,
		Balance:    money.Normalize(initialBalance),
		CreatedAt:  s.now(),
	}
	s.accounts[id] = account
	s.order = append(s.order, id)
	s.byCustomer[customerID] = append(s.byCustomer[customerID], id)

	return *account, nil
}

// Get returns a copy of the account.
func (s *AccountStore) Get(accountID string) (models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, apperr.AccountNotFound(accountID)
	}
	return *account, nil
}

// Exists reports whether the account has been created.
func (s *AccountStore) Exists(accountID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[accountID]
	return ok
}

// Adjust applies balance += delta and returns the updated account. A delta
// that would drive the balance negative fails with INSUFFICIENT_FUNDS and
// leaves the record untouched.
func (s *AccountStore) Adjust(accountID string, delta decimal.Decimal) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[accountID]
	if !ok {
		return models.Account{}, apperr.AccountNotFound(accountID)
	}

	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return models.Account{}, apperr.InsufficientFunds(accountID, account.Balance, delta.Neg())
	}
	account.Balance = next

	return *account, nil
}

// IDsByCustomer returns the ids of the customer's accounts in creation order.
// Unknown customers yield an empty slice.
func (s *AccountStore) IDsByCustomer(customerID int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.byCustomer[customerID]...)
}

// Count returns the number of accounts.
func (s *AccountStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
