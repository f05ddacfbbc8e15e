// Package lock serializes mutations of individual accounts.
//
// Each account id maps to a one-slot semaphore. Operations spanning two
// accounts acquire both slots in ascending id order, so two operations that
// share an account can never wait on each other in a cycle.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/eaglebank/ledger/internal/apperr"
)

// MaxAccounts is the largest account set a single operation may lock.
const MaxAccounts = 2

// Guard hands out exclusive access to accounts. The zero value is not usable;
// construct with NewGuard.
type Guard struct {
	mu     sync.Mutex
	slots  map[string]*semaphore.Weighted
	logger *zap.Logger
}

func NewGuard(logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		slots:  make(map[string]*semaphore.Weighted),
		logger: logger,
	}
}

// slot returns the semaphore for id, creating it on first use. Slots are never
// removed, so callers must only lock ids of accounts that exist; accounts are
// never deleted.
func (g *Guard) slot(id string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[id]
	if !ok {
		s = semaphore.NewWeighted(1)
		g.slots[id] = s
	}
	return s
}

// Size reports how many account slots the guard holds.
func (g *Guard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.slots)
}

// WithLock runs fn while holding every account in ids. Duplicates collapse to
// one acquisition. Locks are released on every exit path, including a panic in
// fn. If ctx ends before all locks are held, the ones already taken are
// released, fn never runs, and a LOCK_TIMEOUT failure is returned.
func (g *Guard) WithLock(ctx context.Context, ids []string, fn func(ctx context.Context) error) error {
	ordered := acquisitionOrder(ids)
	if len(ordered) == 0 || len(ordered) > MaxAccounts {
		return fmt.Errorf("lock: expected 1 to %d account ids, got %d", MaxAccounts, len(ordered))
	}

	held := make([]*semaphore.Weighted, 0, len(ordered))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}()

	for _, id := range ordered {
		s := g.slot(id)
		if err := s.Acquire(ctx, 1); err != nil {
			g.logger.Warn("gave up waiting for account lock",
				zap.String("account_id", id),
				zap.Strings("lock_set", ordered),
				zap.Error(err),
			)
			return apperr.LockTimeout(id, err)
		}
		held = append(held, s)
	}

	return fn(ctx)
}

// acquisitionOrder dedupes ids and sorts them lexicographically.
func acquisitionOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	ordered := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)
	return ordered
}
