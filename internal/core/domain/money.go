package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Currency is the single currency the ledger holds.
const Currency = "FCFA"

var (
	ErrFractionalAmount = errors.New("amount must be a whole number of FCFA")
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// FormatAmount renders a whole-FCFA amount for messages, e.g. "5000 FCFA".
func FormatAmount(amount int64) string {
	return decimal.NewFromInt(amount).StringFixed(0) + " " + Currency
}

// AmountFromDecimal converts a decoded request amount to whole FCFA.
func AmountFromDecimal(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() {
		return 0, ErrFractionalAmount
	}
	if !d.BigInt().IsInt64() {
		return 0, ErrAmountOutOfRange
	}
	return d.IntPart(), nil
}
