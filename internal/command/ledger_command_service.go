package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eaglebank/ledger/internal/apperr"
	"github.com/eaglebank/ledger/internal/lock"
	"github.com/eaglebank/ledger/internal/money"
	"github.com/eaglebank/ledger/internal/repository"
	"github.com/eaglebank/ledger/shared/cqrs"
	"github.com/eaglebank/ledger/shared/events"
	"github.com/eaglebank/ledger/shared/models"
)

// EventPublisher is satisfied by *events.Publisher and events.NopPublisher.
type EventPublisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// LedgerCommandService owns every balance mutation. Mutations happen only
// while the guard holds the affected accounts; events go out after the locks
// are released and never change an operation's outcome.
type LedgerCommandService struct {
	accounts  *repository.AccountStore
	transfers *repository.TransferLog
	guard     *lock.Guard
	publisher EventPublisher
	stream    string
	logger    *zap.Logger

	newTransactionID func() string
	now              func() time.Time
}

func NewLedgerCommandService(
	accounts *repository.AccountStore,
	transfers *repository.TransferLog,
	guard *lock.Guard,
	publisher EventPublisher,
	stream string,
	logger *zap.Logger,
) *LedgerCommandService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if stream == "" {
		stream = events.LedgerEventsStream
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerCommandService{
		accounts:         accounts,
		transfers:        transfers,
		guard:            guard,
		publisher:        publisher,
		stream:           stream,
		logger:           logger,
		newTransactionID: uuid.NewString,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount opens an account with the given deposit. The id is new, so no
// lock is needed.
func (s *LedgerCommandService) CreateAccount(ctx context.Context, cmd cqrs.CreateAccountCommand) (*models.Account, error) {
	account, err := s.accounts.Create(cmd.CustomerID, cmd.InitialDeposit)
	if err != nil {
		s.logger.Warn("account creation rejected",
			zap.Int("customer_id", cmd.CustomerID),
			zap.String("initial_deposit", apperr.CompactAmount(cmd.InitialDeposit)),
			zap.String("kind", string(apperr.KindOf(err))),
		)
		return nil, err
	}

	s.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.Int("customer_id", account.CustomerID),
		zap.String("balance", money.Format(account.Balance)),
	)

	s.publish(ctx, events.AccountCreated, events.AccountCreatedEvent{
		AccountID:  account.ID,
		CustomerID: account.CustomerID,
		Balance:    account.Balance,
		CreatedAt:  account.CreatedAt,
	})

	return &account, nil
}

// ExecuteTransfer moves amount from one account to another. Every
// precondition is checked before the first balance changes, so a failure
// leaves both accounts and the transfer log untouched.
func (s *LedgerCommandService) ExecuteTransfer(ctx context.Context, cmd cqrs.ExecuteTransferCommand) (*models.Transfer, error) {
	if err := money.ValidatePositive(cmd.Amount); err != nil {
		return nil, s.rejected(cmd, err)
	}
	if cmd.FromAccountID == cmd.ToAccountID {
		return nil, s.rejected(cmd, apperr.SameAccountTransfer(cmd.FromAccountID))
	}
	// Accounts are never deleted, so an id checked here still exists once
	// locked. Unknown ids never reach the guard.
	for _, id := range []string{cmd.FromAccountID, cmd.ToAccountID} {
		if !s.accounts.Exists(id) {
			return nil, s.rejected(cmd, apperr.AccountNotFound(id))
		}
	}
	amount := money.Normalize(cmd.Amount)

	var (
		transfer           models.Transfer
		fromAfter, toAfter models.Account
	)
	err := s.guard.WithLock(ctx, []string{cmd.FromAccountID, cmd.ToAccountID}, func(context.Context) error {
		from, err := s.accounts.Get(cmd.FromAccountID)
		if err != nil {
			return err
		}
		if _, err := s.accounts.Get(cmd.ToAccountID); err != nil {
			return err
		}
		if from.Balance.LessThan(amount) {
			return apperr.InsufficientFunds(from.ID, from.Balance, amount)
		}

		if fromAfter, err = s.accounts.Adjust(cmd.FromAccountID, amount.Neg()); err != nil {
			return err
		}
		if toAfter, err = s.accounts.Adjust(cmd.ToAccountID, amount); err != nil {
			return err
		}

		transfer = models.Transfer{
			TransactionID: s.newTransactionID(),
			FromAccountID: cmd.FromAccountID,
			ToAccountID:   cmd.ToAccountID,
			Amount:        amount,
			ExecutedAt:    s.now(),
		}
		s.transfers.Append(transfer)
		return nil
	})
	if err != nil {
		return nil, s.rejected(cmd, err)
	}

	s.logger.Info("transfer committed",
		zap.String("transaction_id", transfer.TransactionID),
		zap.String("from_account_id", transfer.FromAccountID),
		zap.String("to_account_id", transfer.ToAccountID),
		zap.String("amount", money.Format(transfer.Amount)),
	)

	s.publish(ctx, events.TransferCompleted, events.TransferCompletedEvent{
		TransactionID: transfer.TransactionID,
		FromAccountID: transfer.FromAccountID,
		ToAccountID:   transfer.ToAccountID,
		Amount:        transfer.Amount,
		FromBalance:   fromAfter.Balance,
		ToBalance:     toAfter.Balance,
		ExecutedAt:    transfer.ExecutedAt,
	})

	return &transfer, nil
}

func (s *LedgerCommandService) rejected(cmd cqrs.ExecuteTransferCommand, err error) error {
	fields := []zap.Field{
		zap.String("from_account_id", cmd.FromAccountID),
		zap.String("to_account_id", cmd.ToAccountID),
		zap.String("amount", apperr.CompactAmount(cmd.Amount)),
		zap.String("kind", string(apperr.KindOf(err))),
	}
	var ledgerErr *apperr.Error
	if errors.As(err, &ledgerErr) && ledgerErr.AccountID != "" {
		fields = append(fields, zap.String("account_id", ledgerErr.AccountID))
	}
	s.logger.Warn("transfer rejected", fields...)
	return err
}

// publish runs after the commit, so a cancelled request must not drop the
// event.
func (s *LedgerCommandService) publish(ctx context.Context, eventType string, data any) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), s.stream, eventType, data); err != nil {
		s.logger.Error("failed to publish ledger event",
			zap.String("event_type", eventType),
			zap.String("stream", s.stream),
			zap.Error(err),
		)
	}
}
