package service_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/service"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func open(t *testing.T, ledger *service.LedgerService, customerID int, deposit string) string {
	t.Helper()
	account, err := ledger.CreateAccount(context.Background(), cqrs.CreateAccountCommand{CustomerID: customerID, InitialDeposit: dec(deposit)})
	require.NoError(t, err)
	return account.ID
}

func transfer(ctx context.Context, ledger *service.LedgerService, from, to, amount string) (*models.Transfer, error) {
	return ledger.ExecuteTransfer(ctx, cqrs.ExecuteTransferCommand{FromAccountID: from, ToAccountID: to, Amount: dec(amount)})
}

func balance(t *testing.T, ledger *service.LedgerService, id string) string {
	t.Helper()
	b, err := ledger.GetBalance(context.Background(), cqrs.GetBalanceQuery{AccountID: id})
	require.NoError(t, err)
	return b.StringFixed(2)
}

func history(t *testing.T, ledger *service.LedgerService, id string) []models.Transfer {
	t.Helper()
	h, err := ledger.GetHistory(context.Background(), cqrs.GetHistoryQuery{AccountID: id})
	require.NoError(t, err)
	return h
}

func TestScenarioCreateAccount(t *testing.T) {
	ledger := service.New(service.Options{})

	account, err := ledger.CreateAccount(context.Background(), cqrs.CreateAccountCommand{CustomerID: 1, InitialDeposit: dec("100.50")})
	require.NoError(t, err)

	assert.Equal(t, "100.50", account.Balance.StringFixed(2))
	assert.Equal(t, "100.50", balance(t, ledger, account.ID))
	assert.Empty(t, history(t, ledger, account.ID))
}

func TestScenarioTransfer(t *testing.T) {
	ledger := service.New(service.Options{})
	a := open(t, ledger, 1, "1000.00")
	b := open(t, ledger, 2, "500.00")

	tr, err := transfer(context.Background(), ledger, a, b, "200.00")
	require.NoError(t, err)
	assert.NotEmpty(t, tr.TransactionID)

	assert.Equal(t, "800.00", balance(t, ledger, a))
	assert.Equal(t, "700.00", balance(t, ledger, b))
	assert.Equal(t, []models.Transfer{*tr}, history(t, ledger, a))
	assert.Equal(t, []models.Transfer{*tr}, history(t, ledger, b))
}

func TestScenarioInsufficientFunds(t *testing.T) {
	ledger := service.New(service.Options{})
	a := open(t, ledger, 1, "50.00")
	b := open(t, ledger, 1, "0")

	_, err := transfer(context.Background(), ledger, a, b, "100.00")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.Equal(t, "50.00", balance(t, ledger, a))
	assert.Equal(t, "0.00", balance(t, ledger, b))
	assert.Empty(t, history(t, ledger, a))
}

func TestScenarioUnknownAccount(t *testing.T) {
	ledger := service.New(service.Options{})
	b := open(t, ledger, 1, "10.00")

	_, err := transfer(context.Background(), ledger, "nonexistent", b, "10.00")
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
	assert.Equal(t, "10.00", balance(t, ledger, b))
	assert.Equal(t, 0, ledger.Stats().Transfers)

	_, err = ledger.GetBalance(context.Background(), cqrs.GetBalanceQuery{AccountID: "nonexistent"})
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
	_, err = ledger.GetHistory(context.Background(), cqrs.GetHistoryQuery{AccountID: "nonexistent"})
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
	_, err = ledger.GetAccount(context.Background(), cqrs.GetAccountQuery{AccountID: "nonexistent"})
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
}

func TestScenarioSameAccount(t *testing.T) {
	ledger := service.New(service.Options{})
	a := open(t, ledger, 1, "100.00")

	_, err := transfer(context.Background(), ledger, a, a, "10.00")
	assert.ErrorIs(t, err, apperr.ErrSameAccountTransfer)
	assert.Equal(t, "100.00", balance(t, ledger, a))
}

func TestScenarioConcurrentTransfersBetweenTwoAccounts(t *testing.T) {
	ledger := service.New(service.Options{})
	a := open(t, ledger, 1, "1000.00")
	b := open(t, ledger, 2, "0.00")

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := transfer(context.Background(), ledger, a, b, "10.00")
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, "900.00", balance(t, ledger, a))
	assert.Equal(t, "100.00", balance(t, ledger, b))
	assert.Len(t, history(t, ledger, a), 10)
	assert.Len(t, history(t, ledger, b), 10)
}

func TestCustomerViews(t *testing.T) {
	ledger := service.New(service.Options{})
	ctx := context.Background()
	a1 := open(t, ledger, 7, "100.00")
	a2 := open(t, ledger, 7, "0")
	other := open(t, ledger, 8, "50.00")

	t1, err := transfer(ctx, ledger, a1, a2, "10.00")
	require.NoError(t, err)
	t2, err := transfer(ctx, ledger, other, a1, "5.00")
	require.NoError(t, err)
	_, err = transfer(ctx, ledger, other, other, "1.00")
	require.Error(t, err)

	accounts, err := ledger.ListCustomerAccounts(ctx, cqrs.ListCustomerAccountsQuery{CustomerID: 7})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, a1, accounts[0].ID)
	assert.Equal(t, "95.00", accounts[0].Balance.StringFixed(2))
	assert.Equal(t, a2, accounts[1].ID)

	transfers, err := ledger.ListCustomerTransfers(ctx, cqrs.ListCustomerTransfersQuery{CustomerID: 7})
	require.NoError(t, err)
	assert.Equal(t, []models.Transfer{*t1, *t2}, transfers)

	none, err := ledger.ListCustomerAccounts(ctx, cqrs.ListCustomerAccountsQuery{CustomerID: 99})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	stats := ledger.Stats()
	assert.Equal(t, 3, stats.Accounts)
	assert.Equal(t, 2, stats.Transfers)
}

func TestIndependentLedgers(t *testing.T) {
	first := service.New(service.Options{})
	second := service.New(service.Options{})
	open(t, first, 1, "1.00")

	assert.Equal(t, 1, first.Stats().Accounts)
	assert.Equal(t, 0, second.Stats().Accounts)
}

type move struct {
	from, to int
	amount   decimal.Decimal
}

// sequentialOutcome applies moves one by one, skipping those that would
// overdraw, and returns the final balances.
func sequentialOutcome(start []decimal.Decimal, moves []move, order []int) []string {
	balances := append([]decimal.Decimal(nil), start...)
	for _, i := range order {
		m := moves[i]
		if balances[m.from].LessThan(m.amount) {
			continue
		}
		balances[m.from] = balances[m.from].Sub(m.amount)
		balances[m.to] = balances[m.to].Add(m.amount)
	}
	out := make([]string, len(balances))
	for i, b := range balances {
		out[i] = b.StringFixed(2)
	}
	return out
}

func permutations(n int) [][]int {
	var out [][]int
	var rec func(prefix []int, used []bool)
	rec = func(prefix []int, used []bool) {
		if len(prefix) == n {
			out = append(out, append([]int(nil), prefix...))
			return
		}
		for i := 0; i < n; i++ {
			if used[i] {
				continue
			}
			used[i] = true
			rec(append(prefix, i), used)
			used[i] = false
		}
	}
	rec(nil, make([]bool, n))
	return out
}

func TestConcurrentBatchesAreSerializable(t *testing.T) {
	const (
		numAccounts = 3
		numMoves    = 5
	)
	perms := permutations(numMoves)

	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			ledger := service.New(service.Options{})

			start := make([]decimal.Decimal, numAccounts)
			ids := make([]string, numAccounts)
			total := decimal.Zero
			for i := range ids {
				start[i] = decimal.New(int64(rng.Intn(60)), 0)
				ids[i] = open(t, ledger, 1, start[i].StringFixed(2))
				total = total.Add(start[i])
			}

			moves := make([]move, numMoves)
			for i := range moves {
				from := rng.Intn(numAccounts)
				to := (from + 1 + rng.Intn(numAccounts-1)) % numAccounts
				moves[i] = move{from: from, to: to, amount: decimal.New(int64(1+rng.Intn(40)), 0)}
			}

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				committed []string
			)
			for _, m := range moves {
				wg.Add(1)
				go func(m move) {
					defer wg.Done()
					tr, err := ledger.ExecuteTransfer(context.Background(), cqrs.ExecuteTransferCommand{
						FromAccountID: ids[m.from], ToAccountID: ids[m.to], Amount: m.amount,
					})
					if err != nil {
						assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
						return
					}
					mu.Lock()
					committed = append(committed, tr.TransactionID)
					mu.Unlock()
				}(m)
			}
			wg.Wait()

			final := make([]string, numAccounts)
			sum := decimal.Zero
			for i, id := range ids {
				b, err := ledger.GetBalance(context.Background(), cqrs.GetBalanceQuery{AccountID: id})
				require.NoError(t, err)
				assert.False(t, b.IsNegative(), "balance of %s went negative", id)
				final[i] = b.StringFixed(2)
				sum = sum.Add(b)
			}
			assert.True(t, total.Equal(sum), "total changed from %s to %s", total, sum)

			matched := false
			for _, order := range perms {
				if assert.ObjectsAreEqual(final, sequentialOutcome(start, moves, order)) {
					matched = true
					break
				}
			}
			assert.True(t, matched, "final balances %v match no sequential order", final)

			assert.Equal(t, len(committed), ledger.Stats().Transfers)

			for _, txID := range committed {
				for _, id := range ids {
					count := 0
					involved := false
					for _, h := range history(t, ledger, id) {
						if h.TransactionID == txID {
							count++
							involved = h.Involves(id)
						}
					}
					assert.LessOrEqual(t, count, 1)
					if count == 1 {
						assert.True(t, involved)
					}
				}
			}
		})
	}
}

func TestHistoryIsCompleteAndOrdered(t *testing.T) {
	ledger := service.New(service.Options{})
	ids := []string{
		open(t, ledger, 1, "500.00"),
		open(t, ledger, 2, "500.00"),
		open(t, ledger, 3, "500.00"),
		open(t, ledger, 4, "500.00"),
	}

	var (
		g         errgroup.Group
		mu        sync.Mutex
		committed []models.Transfer
	)
	for i := 0; i < 200; i++ {
		from := ids[i%len(ids)]
		to := ids[(i*7+1)%len(ids)]
		if from == to {
			to = ids[(i+1)%len(ids)]
		}
		g.Go(func() error {
			tr, err := transfer(context.Background(), ledger, from, to, "1.25")
			if err != nil {
				return err
			}
			mu.Lock()
			committed = append(committed, *tr)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, committed, 200)
	assert.Equal(t, 200, ledger.Stats().Transfers)

	perAccount := make(map[string]int)
	for _, tr := range committed {
		perAccount[tr.FromAccountID]++
		perAccount[tr.ToAccountID]++
	}

	for _, id := range ids {
		h := history(t, ledger, id)
		assert.Len(t, h, perAccount[id])
		seen := make(map[string]bool)
		for i, tr := range h {
			assert.True(t, tr.Involves(id))
			assert.False(t, seen[tr.TransactionID], "duplicate %s", tr.TransactionID)
			seen[tr.TransactionID] = true
			if i > 0 {
				assert.False(t, tr.ExecutedAt.Before(h[i-1].ExecutedAt), "history out of order")
			}
		}
	}

	sum := decimal.Zero
	for _, id := range ids {
		b, err := ledger.GetBalance(context.Background(), cqrs.GetBalanceQuery{AccountID: id})
		require.NoError(t, err)
		sum = sum.Add(b)
	}
	assert.Equal(t, "2000.00", sum.StringFixed(2))
}

func TestConcurrentOppositeTransfersDoNotDeadlock(t *testing.T) {
	ledger := service.New(service.Options{})
	a := open(t, ledger, 1, "1000.00")
	b := open(t, ledger, 2, "1000.00")

	var g errgroup.Group
	for i := 0; i < 100; i++ {
		from, to := a, b
		if i%2 == 1 {
			from, to = b, a
		}
		g.Go(func() error {
			_, err := transfer(context.Background(), ledger, from, to, "3.00")
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, "1000.00", balance(t, ledger, a))
	assert.Equal(t, "1000.00", balance(t, ledger, b))
}
