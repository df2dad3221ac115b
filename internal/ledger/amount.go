package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountCents is the largest amount a single operation may carry.
const MaxAmountCents int64 = 100_000_000_000_000

// Exponents outside this window cannot describe a valid amount, and
// rescaling them is costly.
const (
	minAmountExp = -32
	maxAmountExp = 18
)

var maxAmount = decimal.New(MaxAmountCents, -2)

// ParseAmount converts a submitted decimal amount into cents. Both "." and
// "," are accepted as the decimal separator. Negative values, values with
// more than two fractional digits and values above MaxAmountCents are
// rejected.
func ParseAmount(s string) (int64, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	if d.IsZero() {
		return 0, nil
	}
	if exp := d.Exponent(); exp > maxAmountExp || exp < minAmountExp {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, s)
	}
	if d.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidAmount, s, FormatCents(MaxAmountCents))
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: %q has more than two decimal places", ErrInvalidAmount, s)
	}
	return cents.IntPart(), nil
}

// AddBalance returns balance+delta, or ErrInvalidAmount when the result does
// not fit in int64 cents.
func AddBalance(balance, delta int64) (int64, error) {
	if (delta > 0 && balance > math.MaxInt64-delta) || (delta < 0 && balance < math.MinInt64-delta) {
		return 0, fmt.Errorf("%w: balance %s plus %s is out of range", ErrInvalidAmount, FormatCents(balance), FormatCents(delta))
	}
	return balance + delta, nil
}

// FormatCents renders cents as a fixed two-digit decimal string.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
