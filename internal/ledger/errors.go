package ledger

import "errors"

// Draft errors
var (
	ErrMissingDate            = errors.New("operation date is required")
	ErrInvalidOperationKind   = errors.New("invalid operation kind")
	ErrInvalidCurrency        = errors.New("currency code is required")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidRate            = errors.New("rate must be positive")
	ErrSameCurrencyExchange   = errors.New("exchange requires two different currencies")
	ErrNegativeCommission     = errors.New("commission cannot be negative")
	ErrCommissionNotAllowed   = errors.New("commission is only allowed on exchange")
	ErrTargetCurrencyMismatch = errors.New("income and expense must use a single currency")
	ErrCategoryNotAllowed     = errors.New("expense category is only allowed on expense")
	ErrMissingCategory        = errors.New("expense requires a category")
	ErrCommentNotAllowed      = errors.New("comment is only allowed on expense")
)

// Currency errors
var (
	ErrInvalidCurrencyName = errors.New("currency name is required")
	ErrCurrencyNotFound    = errors.New("currency not found")
)

// Balance errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Operation and change-log errors
var (
	ErrOperationNotFound  = errors.New("operation not found")
	ErrChangeNotFound     = errors.New("change not found")
	ErrNotADeleteChange   = errors.New("only delete changes can be restored")
	ErrSnapshotUnreadable = errors.New("snapshot cannot be decoded")
	ErrRestoreFailed      = errors.New("restore failed")
	ErrChangeLogWrite     = errors.New("change log write failed")
	ErrPairRateNotFound   = errors.New("no rate remembered for pair")
)

// Bulk replace errors
var (
	ErrInvalidImportedOperation = errors.New("invalid operation in bulk replace")
)
