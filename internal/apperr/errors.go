// Package apperr defines the failure kinds returned by ledger operations.
//
// Every failure is an *Error carrying its Kind plus the data that identifies
// the offending input. Callers branch with errors.Is against the exported
// sentinels, or with KindOf.
package apperr

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindInvalidAmount       Kind = "INVALID_AMOUNT"
	KindSameAccountTransfer Kind = "SAME_ACCOUNT_TRANSFER"
	KindAccountNotFound     Kind = "ACCOUNT_NOT_FOUND"
	KindInsufficientFunds   Kind = "INSUFFICIENT_FUNDS"
	KindLockTimeout         Kind = "LOCK_TIMEOUT"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSameAccountTransfer = errors.New("cannot transfer to the same account")
	ErrAccountNotFound     = errors.New("account not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrLockTimeout         = errors.New("timed out waiting for account lock")
)

var sentinels = map[Kind]error{
	KindInvalidAmount:       ErrInvalidAmount,
	KindSameAccountTransfer: ErrSameAccountTransfer,
	KindAccountNotFound:     ErrAccountNotFound,
	KindInsufficientFunds:   ErrInsufficientFunds,
	KindLockTimeout:         ErrLockTimeout,
}

// Error is a ledger failure. Fields that do not apply to a kind are left zero.
type Error struct {
	Kind      Kind
	AccountID string
	Amount    decimal.Decimal
	Balance   decimal.Decimal
	Reason    string
	Cause     error
}

func (e *Error) Error() string {
	msg := "ledger error"
	if sentinel, ok := sentinels[e.Kind]; ok {
		msg = sentinel.Error()
	} else if e.Kind != "" {
		msg = string(e.Kind)
	}
	switch e.Kind {
	case KindInvalidAmount:
		msg = fmt.Sprintf("%s %s", msg, CompactAmount(e.Amount))
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
	case KindInsufficientFunds:
		msg = fmt.Sprintf("%s in account %s: balance %s, requested %s",
			msg, e.AccountID, e.Balance.StringFixed(2), e.Amount.StringFixed(2))
	case KindAccountNotFound, KindSameAccountTransfer, KindLockTimeout:
		msg = fmt.Sprintf("%s: %s", msg, e.AccountID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the caller may retry the same request unchanged.
// Only lock timeouts qualify; nothing was mutated when one is returned.
func (e *Error) Retryable() bool { return e.Kind == KindLockTimeout }

func InvalidAmount(amount decimal.Decimal, reason string) *Error {
	return &Error{Kind: KindInvalidAmount, Amount: amount, Reason: reason}
}

func SameAccountTransfer(accountID string) *Error {
	return &Error{Kind: KindSameAccountTransfer, AccountID: accountID}
}

func AccountNotFound(accountID string) *Error {
	return &Error{Kind: KindAccountNotFound, AccountID: accountID}
}

func InsufficientFunds(accountID string, balance, amount decimal.Decimal) *Error {
	return &Error{Kind: KindInsufficientFunds, AccountID: accountID, Balance: balance, Amount: amount}
}

func LockTimeout(accountID string, cause error) *Error {
	return &Error{Kind: KindLockTimeout, AccountID: accountID, Cause: cause}
}

// CompactAmount renders d like String unless its exponent is far outside any
// real amount, in which case it prints coefficient and exponent instead of
// expanding the number.
func CompactAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp > 32 || exp < -32 {
		return d.Coefficient().String() + "e" + strconv.Itoa(int(exp))
	}
	return d.String()
}

// KindOf returns the kind of a ledger failure, or "" for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a ledger failure that is safe to retry.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
