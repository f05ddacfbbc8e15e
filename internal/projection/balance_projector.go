// Package projection keeps a Redis read model of account balances in step
// with the ledger event stream.
package projection

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
	"github.com/eaglebank/ledger/shared/redis"
)

const snapshotKeyPrefix = "account:snapshot:"

func SnapshotKey(accountID string) string {
	return snapshotKeyPrefix + accountID
}

// BalanceProjector applies ledger events to account snapshots. Events carry
// post-commit balances, so applying one is an overwrite; an event older than
// the stored snapshot is skipped, which makes redelivery harmless.
type BalanceProjector struct {
	cache  *redis.ViewCache[models.AccountSnapshot]
	logger *zap.Logger
}

func NewBalanceProjector(cache *redis.ViewCache[models.AccountSnapshot], logger *zap.Logger) *BalanceProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceProjector{cache: cache, logger: logger}
}

// HandleEvent is an events.Handler.
func (p *BalanceProjector) HandleEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.AccountCreated:
		data, err := events.Decode[events.AccountCreatedEvent](event)
		if err != nil {
			return err
		}
		return p.apply(ctx, models.AccountSnapshot{
			AccountID:  data.AccountID,
			CustomerID: data.CustomerID,
			Balance:    data.Balance,
			UpdatedAt:  data.CreatedAt,
		})

	case events.TransferCompleted:
		data, err := events.Decode[events.TransferCompletedEvent](event)
		if err != nil {
			return err
		}
		if err := p.apply(ctx, models.AccountSnapshot{
			AccountID:         data.FromAccountID,
			Balance:           data.FromBalance,
			LastTransactionID: data.TransactionID,
			UpdatedAt:         data.ExecutedAt,
		}); err != nil {
			return err
		}
		return p.apply(ctx, models.AccountSnapshot{
			AccountID:         data.ToAccountID,
			Balance:           data.ToBalance,
			LastTransactionID: data.TransactionID,
			UpdatedAt:         data.ExecutedAt,
		})

	default:
		p.logger.Debug("ignoring event", zap.String("event_type", event.Type))
		return nil
	}
}

// Snapshot returns the projected state of an account, if any.
func (p *BalanceProjector) Snapshot(ctx context.Context, accountID string) (*models.AccountSnapshot, bool) {
	return p.cache.Get(ctx, SnapshotKey(accountID))
}

func (p *BalanceProjector) apply(ctx context.Context, next models.AccountSnapshot) error {
	key := SnapshotKey(next.AccountID)

	if current, ok := p.cache.Get(ctx, key); ok {
		if next.UpdatedAt.Before(current.UpdatedAt) {
			p.logger.Debug("skipping stale event",
				zap.String("account_id", next.AccountID),
				zap.Time("event_time", next.UpdatedAt),
				zap.Time("snapshot_time", current.UpdatedAt),
			)
			return nil
		}
		if next.CustomerID == 0 {
			next.CustomerID = current.CustomerID
		}
	}

	if err := p.cache.Set(ctx, key, &next); err != nil {
		return fmt.Errorf("project %s: %w", next.AccountID, err)
	}
	return nil
}
