package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/pkg/money"
)

// RateLookup returns the cached rate to USD of a currency.
type RateLookup func(code string) (decimal.Decimal, error)

// Derive turns a validated draft into an operation ready to persist. The
// returned operation has no ID yet.
func Derive(d *Draft, lookup RateLookup) (*Operation, error) {
	op := &Operation{
		Date:            d.Date.UTC(),
		Kind:            d.Kind,
		SourceCurrency:  d.SourceCurrency,
		SourceAmount:    d.SourceAmount,
		ExpenseCategory: d.ExpenseCategory,
		Comment:         d.Comment,
	}

	switch d.Kind {
	case KindIncome, KindExpense:
		rate, err := recordedRate(d, lookup)
		if err != nil {
			return nil, err
		}
		op.TargetCurrency = d.SourceCurrency
		op.TargetAmount = d.SourceAmount
		op.Rate = rate
		op.USDEquivalent = usdValue(d.SourceCurrency, d.SourceAmount, rate)

	case KindExchange:
		fee := decimal.Zero
		if d.Commission != nil {
			fee = *d.Commission
		}
		finalTarget := decimal.Max(decimal.Zero, d.SourceAmount.Mul(*d.Rate).Sub(fee))

		op.TargetCurrency = d.TargetCurrency
		op.TargetAmount = finalTarget
		op.Rate = CanonicalRate(d.SourceAmount, finalTarget)
		op.Commission = d.Commission

		usd, err := exchangeUSDValue(op, lookup)
		if err != nil {
			return nil, err
		}
		op.USDEquivalent = usd

	default:
		return nil, ErrInvalidOperationKind
	}

	return op, nil
}

// CanonicalRate is the effective exchange rate after fees: target per source.
func CanonicalRate(sourceAmount, targetAmount decimal.Decimal) decimal.Decimal {
	if sourceAmount.IsZero() {
		return decimal.Zero
	}
	return targetAmount.Div(sourceAmount)
}

func recordedRate(d *Draft, lookup RateLookup) (decimal.Decimal, error) {
	if d.Rate != nil {
		return *d.Rate, nil
	}
	if d.SourceCurrency == money.USD {
		return decimal.NewFromInt(1), nil
	}
	rate, err := lookup(d.SourceCurrency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read cached rate for %s: %w", d.SourceCurrency, err)
	}
	return rate, nil
}

func usdValue(code string, amount, rate decimal.Decimal) decimal.Decimal {
	if code == money.USD {
		return amount
	}
	return amount.Mul(rate)
}

func exchangeUSDValue(op *Operation, lookup RateLookup) (decimal.Decimal, error) {
	switch {
	case op.TargetCurrency == money.USD:
		return op.TargetAmount, nil
	case op.SourceCurrency == money.USD:
		return op.SourceAmount, nil
	}

	rate, err := lookup(op.TargetCurrency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read cached rate for %s: %w", op.TargetCurrency, err)
	}
	return op.TargetAmount.Mul(rate), nil
}
