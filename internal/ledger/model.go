package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/pkg/money"
)

// OperationKind is the type of a cash operation
type OperationKind string

const (
	KindIncome   OperationKind = "Income"
	KindExpense  OperationKind = "Expense"
	KindExchange OperationKind = "Exchange"
)

// AllOperationKinds returns all supported operation kinds
func AllOperationKinds() []OperationKind {
	return []OperationKind{KindIncome, KindExpense, KindExchange}
}

// IsValid checks if the kind is known
func (k OperationKind) IsValid() bool {
	switch k {
	case KindIncome, KindExpense, KindExchange:
		return true
	}
	return false
}

// Spends reports whether the kind takes money out of its source currency.
func (k OperationKind) Spends() bool {
	return k == KindExpense || k == KindExchange
}

// Currency is a registered currency code
type Currency struct {
	Code     string
	Name     string
	IsActive bool
}

// Operation is a committed cash event. Operations are immutable once stored;
// Income and Expense carry the same currency and amount on both sides.
type Operation struct {
	ID              int64
	Date            time.Time
	Kind            OperationKind
	SourceCurrency  string
	SourceAmount    decimal.Decimal
	TargetCurrency  string
	TargetAmount    decimal.Decimal
	Rate            decimal.Decimal
	Commission      *decimal.Decimal
	USDEquivalent   decimal.Decimal
	ExpenseCategory *string
	Comment         *string
}

// Currencies returns the distinct currency codes touched by the operation.
func (o *Operation) Currencies() []string {
	if o.TargetCurrency == "" || o.TargetCurrency == o.SourceCurrency {
		return []string{o.SourceCurrency}
	}
	return []string{o.SourceCurrency, o.TargetCurrency}
}

// Draft is a proposed operation before derivation.
type Draft struct {
	Date           time.Time
	Kind           OperationKind
	SourceCurrency string
	SourceAmount   decimal.Decimal
	TargetCurrency string
	// Rate is required for Exchange (target units per source unit, before
	// commission). For Income and Expense it is optional; when nil the cached
	// rate to USD of the source currency is used.
	Rate            *decimal.Decimal
	Commission      *decimal.Decimal
	ExpenseCategory *string
	Comment         *string
}

// Normalize canonicalizes currency codes and blank optional text fields.
func (d *Draft) Normalize() {
	d.SourceCurrency = money.NormalizeCode(d.SourceCurrency)
	d.TargetCurrency = money.NormalizeCode(d.TargetCurrency)
	d.ExpenseCategory = blankToNil(d.ExpenseCategory)
	d.Comment = blankToNil(d.Comment)
}

// Validate checks the draft before any persistence happens.
func (d *Draft) Validate() error {
	if d.Date.IsZero() {
		return ErrMissingDate
	}
	if !d.Kind.IsValid() {
		return ErrInvalidOperationKind
	}
	if d.SourceCurrency == "" {
		return ErrInvalidCurrency
	}
	if !d.SourceAmount.IsPositive() {
		return ErrInvalidAmount
	}

	if d.Kind == KindExchange {
		if d.TargetCurrency == "" {
			return ErrInvalidCurrency
		}
		if d.TargetCurrency == d.SourceCurrency {
			return ErrSameCurrencyExchange
		}
		if d.Rate == nil || !d.Rate.IsPositive() {
			return ErrInvalidRate
		}
		if d.Commission != nil && d.Commission.IsNegative() {
			return ErrNegativeCommission
		}
	} else {
		if d.Rate != nil && !d.Rate.IsPositive() {
			return ErrInvalidRate
		}
		if d.Commission != nil {
			return ErrCommissionNotAllowed
		}
		if d.TargetCurrency != "" && d.TargetCurrency != d.SourceCurrency {
			return ErrTargetCurrencyMismatch
		}
	}

	if d.Kind == KindExpense {
		if d.ExpenseCategory == nil {
			return ErrMissingCategory
		}
	} else {
		if d.ExpenseCategory != nil {
			return ErrCategoryNotAllowed
		}
		if d.Comment != nil {
			return ErrCommentNotAllowed
		}
	}

	return nil
}

// Balance is the running amount held in one currency
type Balance struct {
	Currency string
	Amount   decimal.Decimal
}

// RateToUSD is the last observed value of one unit of Currency in USD
type RateToUSD struct {
	Currency string
	Rate     decimal.Decimal
}

// PairRate is the last canonical exchange rate used for an ordered pair
type PairRate struct {
	From      string
	To        string
	Rate      decimal.Decimal
	UpdatedAt time.Time
}

// ChangeAction is the kind of change-log entry
type ChangeAction string

const (
	ActionCreate  ChangeAction = "Create"
	ActionDelete  ChangeAction = "Delete"
	ActionRestore ChangeAction = "Restore"
)

// IsValid checks if the action is known
func (a ChangeAction) IsValid() bool {
	switch a {
	case ActionCreate, ActionDelete, ActionRestore:
		return true
	}
	return false
}

// Change is an append-only audit entry
type Change struct {
	ID          int64
	OperationID *int64
	Action      ChangeAction
	Timestamp   time.Time
	Snapshot    string
	Reason      *string
}

// BalanceMismatch reports a stored balance that disagrees with the log.
type BalanceMismatch struct {
	Currency string
	Stored   decimal.Decimal
	Computed decimal.Decimal
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
