// Package money holds the fixed-point rules for ledger amounts: two fractional
// digits, never silently truncated.
package money

import (
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eaglebank/ledger/internal/apperr"
)

// Scale is the number of fractional digits every amount carries.
const Scale = 2

// maxMagnitude is the power of ten of MaxAmount.
const maxMagnitude = 6

// MaxAmount caps a single deposit or transfer.
var MaxAmount = decimal.New(1, maxMagnitude)

// Every check below works on the coefficient digits and the exponent. None of
// them rescales, because rescaling 1e5000000 means building a power of ten
// with millions of digits.

// digits returns the decimal digits of |coefficient|.
func digits(d decimal.Decimal) string {
	return new(big.Int).Abs(d.Coefficient()).String()
}

// leadingExponent is the power of ten of d's most significant digit. Only
// meaningful for non-zero d.
func leadingExponent(d decimal.Decimal) int {
	return len(digits(d)) + int(d.Exponent()) - 1
}

// IsExact reports whether d is representable at Scale without rounding.
// 10.50 and 10.500 qualify, 10.505 does not.
func IsExact(d decimal.Decimal) bool {
	excess := -Scale - int(d.Exponent())
	if excess <= 0 || d.IsZero() {
		return true
	}
	ds := digits(d)
	if excess >= len(ds) {
		return false
	}
	return strings.TrimRight(ds[len(ds)-excess:], "0") == ""
}

// ExceedsMax reports whether |d| is above MaxAmount.
func ExceedsMax(d decimal.Decimal) bool {
	if d.IsZero() {
		return false
	}
	switch lead := leadingExponent(d); {
	case lead > maxMagnitude:
		return true
	case lead < maxMagnitude:
		return false
	}
	// Leading digit sits at 10^6: only a one followed by zeros equals the cap.
	return strings.TrimRight(digits(d), "0") != "1"
}

// Float64 approximates d for range checks. Values far outside the ledger's
// range collapse to ±Inf or zero instead of being expanded.
func Float64(d decimal.Decimal) float64 {
	if d.IsZero() {
		return 0
	}
	switch lead := leadingExponent(d); {
	case lead > 300:
		return math.Inf(d.Sign())
	case lead < -300:
		return 0
	}
	return d.InexactFloat64()
}

// Normalize returns d rounded to Scale. Callers must validate d first;
// rounding an exact value only fixes its exponent.
func Normalize(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero.Round(Scale)
	}
	return d.Round(Scale)
}

// ValidatePositive checks a transfer amount.
func ValidatePositive(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return apperr.InvalidAmount(amount, "must be greater than zero")
	}
	return validateRange(amount)
}

// ValidateNonNegative checks an opening deposit.
func ValidateNonNegative(amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return apperr.InvalidAmount(amount, "must not be negative")
	}
	return validateRange(amount)
}

func validateRange(amount decimal.Decimal) error {
	if ExceedsMax(amount) {
		return apperr.InvalidAmount(amount, "must not exceed "+MaxAmount.String())
	}
	if !IsExact(amount) {
		return apperr.InvalidAmount(amount, "more than two fractional digits")
	}
	return nil
}

// Format renders d with exactly Scale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
