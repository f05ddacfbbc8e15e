package repository

import (
	"sort"
	"sync"

	"github.com/eaglebank/ledger/shared/models"
)

// TransferLog is the append-only record of committed transfers. Entries keep
// their commit position for the lifetime of the process; byAccount indexes
// positions in the global sequence for both participants.
type TransferLog struct {
	mu        sync.RWMutex
	entries   []models.Transfer
	byAccount map[string][]int
}

func NewTransferLog() *TransferLog {
	return &TransferLog{byAccount: make(map[string][]int)}
}

// Append records t at the end of the global sequence and indexes it under
// both accounts.
func (l *TransferLog) Append(t models.Transfer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos := len(l.entries)
	l.entries = append(l.entries, t)
	l.byAccount[t.FromAccountID] = append(l.byAccount[t.FromAccountID], pos)
	if t.ToAccountID != t.FromAccountID {
		l.byAccount[t.ToAccountID] = append(l.byAccount[t.ToAccountID], pos)
	}
}

// HistoryFor returns the account's transfers in commit order, oldest first.
// An account with no transfers yields an empty, non-nil slice; whether the
// account exists is not this log's concern.
func (l *TransferLog) HistoryFor(accountID string) []models.Transfer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.byAccount[accountID])
}

// HistoryForAny returns the transfers touching any of accountIDs, in commit
// order, each transfer once even when both sides are in the set.
func (l *TransferLog) HistoryForAny(accountIDs []string) []models.Transfer {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[int]struct{})
	var positions []int
	for _, id := range accountIDs {
		for _, pos := range l.byAccount[id] {
			if _, dup := seen[pos]; dup {
				continue
			}
			seen[pos] = struct{}{}
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	return l.collect(positions)
}

// Count returns the number of committed transfers.
func (l *TransferLog) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// All returns every committed transfer in commit order.
func (l *TransferLog) All() []models.Transfer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append(make([]models.Transfer, 0, len(l.entries)), l.entries...)
}

// collect must be called with l.mu held.
func (l *TransferLog) collect(positions []int) []models.Transfer {
	out := make([]models.Transfer, 0, len(positions))
	for _, pos := range positions {
		out = append(out, l.entries[pos])
	}
	return out
}
