// Package service assembles the ledger core. Writes live in internal/command
// and reads in internal/query; LedgerService exposes both over one set of
// stores and one lock guard.
package service

import (
	"go.uber.org/zap"

	"github.com/eaglebank/ledger/internal/command"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/query"
	"github.com/eaglebank/ledger/internal/repository"
)

type Options struct {
	// Publisher receives ledger events after each commit. Nil disables events.
	Publisher command.EventPublisher
	// Stream is the Redis stream events are written to.
	Stream string
	Logger *zap.Logger
}

type LedgerService struct {
	*command.LedgerCommandService
	*query.LedgerQueryService
}

// New builds an independent ledger with empty state.
func New(opts Options) *LedgerService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	accounts := repository.NewAccountStore()
	transfers := repository.NewTransferLog()
	guard := lock.NewGuard(logger.Named("lock"))

	return &LedgerService{
		LedgerCommandService: command.NewLedgerCommandService(accounts, transfers, guard, opts.Publisher, opts.Stream, logger.Named("command")),
		LedgerQueryService:   query.NewLedgerQueryService(accounts, transfers, guard),
	}
}
