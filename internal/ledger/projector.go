package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/pkg/money"
)

// BalanceDelta is a signed change of one currency balance
type BalanceDelta struct {
	Currency string
	Amount   decimal.Decimal
}

// BalanceDeltas returns the balance changes implied by op.
//
//	Income:   +source on source currency
//	Expense:  -source on source currency
//	Exchange: -source on source currency, +target on target currency
func BalanceDeltas(op *Operation) []BalanceDelta {
	switch op.Kind {
	case KindIncome:
		return []BalanceDelta{{Currency: op.SourceCurrency, Amount: op.SourceAmount}}
	case KindExpense:
		return []BalanceDelta{{Currency: op.SourceCurrency, Amount: op.SourceAmount.Neg()}}
	case KindExchange:
		return []BalanceDelta{
			{Currency: op.SourceCurrency, Amount: op.SourceAmount.Neg()},
			{Currency: op.TargetCurrency, Amount: op.TargetAmount},
		}
	}
	return nil
}

// InverseBalanceDeltas returns the exact negation of BalanceDeltas(op).
func InverseBalanceDeltas(op *Operation) []BalanceDelta {
	deltas := BalanceDeltas(op)
	for i := range deltas {
		deltas[i].Amount = deltas[i].Amount.Neg()
	}
	return deltas
}

// RateUpdates returns the rate-to-USD cache writes implied by op.
// Exchanges into USD cache the source rate directly, exchanges out of USD
// cache the reciprocal. Income and Expense in a non-USD currency cache the
// rate they were recorded with. Rates of zero never overwrite the cache.
func RateUpdates(op *Operation) []RateToUSD {
	if !op.Rate.IsPositive() {
		return nil
	}

	switch op.Kind {
	case KindExchange:
		switch {
		case op.TargetCurrency == money.USD:
			return []RateToUSD{{Currency: op.SourceCurrency, Rate: op.Rate}}
		case op.SourceCurrency == money.USD:
			return []RateToUSD{{Currency: op.TargetCurrency, Rate: decimal.NewFromInt(1).Div(op.Rate)}}
		}
	case KindIncome, KindExpense:
		if op.SourceCurrency != money.USD {
			return []RateToUSD{{Currency: op.SourceCurrency, Rate: op.Rate}}
		}
	}
	return nil
}

// PairRateUpdate returns the pair memory write for an exchange.
func PairRateUpdate(op *Operation, at time.Time) (*PairRate, bool) {
	if op.Kind != KindExchange {
		return nil, false
	}
	return &PairRate{
		From:      op.SourceCurrency,
		To:        op.TargetCurrency,
		Rate:      op.Rate,
		UpdatedAt: at.UTC(),
	}, true
}

// Project folds operations, in the given order, into per-currency balances.
func Project(ops []*Operation) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, op := range ops {
		for _, d := range BalanceDeltas(op) {
			balances[d.Currency] = balances[d.Currency].Add(d.Amount)
		}
	}
	return balances
}
