package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used when checking that a balance covers an amount.
var Epsilon = decimal.New(1, -4)

// USD is the reference currency of the rate cache.
const USD = "USD"

// Parse converts a user supplied amount into a decimal.
// Accepts a comma as decimal separator ("100,5") and ignores spaces used as
// thousands separators ("1 000.25").
func Parse(amountStr string) (decimal.Decimal, error) {
	s := normalize(amountStr)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount is required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", amountStr)
	}

	return d, nil
}

// ParseOptional is Parse for optional fields: blank input yields nil.
func ParseOptional(amountStr string) (*decimal.Decimal, error) {
	if normalize(amountStr) == "" {
		return nil, nil
	}
	d, err := Parse(amountStr)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Covers reports whether balance can pay amount within Epsilon.
func Covers(balance, amount decimal.Decimal) bool {
	return !balance.Sub(amount).LessThan(Epsilon.Neg())
}

// NormalizeCode canonicalizes a currency code: trimmed and upper-case.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	// "1.234,56" is ambiguous enough to reject; a lone comma is a decimal separator
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}
