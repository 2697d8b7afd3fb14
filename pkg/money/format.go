package money

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Format renders amount in the currency's conventional display form, e.g.
// "$1,234.50" for USD. Codes unknown to the ISO table fall back to "1234.50 XYZ".
func Format(amount decimal.Decimal, code string) string {
	code = NormalizeCode(code)
	if gomoney.GetCurrency(code) == nil {
		return amount.StringFixed(2) + " " + code
	}

	// money.New never returns a nil currency
	cur := *gomoney.New(0, code).Currency()
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Fraction returns the number of minor-unit digits of code, 2 when unknown.
func Fraction(code string) int {
	if cur := gomoney.GetCurrency(NormalizeCode(code)); cur != nil {
		return cur.Fraction
	}
	return 2
}
