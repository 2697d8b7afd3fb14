package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for ledger persistence operations.
// Every method runs inside the transaction carried by ctx when there is one.
type Repository interface {
	// Currency operations
	// EnsureCurrency inserts the currency, its zero balance and its rate row
	// when missing (rate 1 for USD, 0 otherwise). Existing rows are untouched.
	EnsureCurrency(ctx context.Context, code string) error
	GetCurrency(ctx context.Context, code string) (*Currency, error)
	ListCurrencies(ctx context.Context, activeOnly bool) ([]*Currency, error)
	UpsertCurrency(ctx context.Context, currency *Currency) error

	// Operation operations
	// InsertOperation stores op and sets op.ID to the assigned id.
	InsertOperation(ctx context.Context, op *Operation) error
	GetOperation(ctx context.Context, id int64) (*Operation, error)
	// ListOperations returns operations in (date, id) order, ascending or descending.
	ListOperations(ctx context.Context, newestFirst bool) ([]*Operation, error)
	DeleteOperation(ctx context.Context, id int64) error
	DeleteAllOperations(ctx context.Context) error

	// Balance operations
	// GetBalanceForUpdate locks the row for the rest of the transaction where the store supports it.
	GetBalanceForUpdate(ctx context.Context, code string) (decimal.Decimal, error)
	SetBalance(ctx context.Context, code string, amount decimal.Decimal) error
	ListBalances(ctx context.Context) ([]*Balance, error)
	ResetBalances(ctx context.Context) error

	// Rate-to-USD cache operations
	GetRateToUSD(ctx context.Context, code string) (decimal.Decimal, error)
	SetRateToUSD(ctx context.Context, code string, rate decimal.Decimal) error
	ListRatesToUSD(ctx context.Context) ([]*RateToUSD, error)
	// ResetRatesToUSD sets USD to 1 and every other registered currency to 0.
	ResetRatesToUSD(ctx context.Context) error

	// Pair rate operations
	GetPairRate(ctx context.Context, from, to string) (*PairRate, error)
	UpsertPairRate(ctx context.Context, rate *PairRate) error
	ClearPairRates(ctx context.Context) error

	// Change log operations
	// AppendChange must not leave the surrounding transaction unusable when it fails.
	AppendChange(ctx context.Context, change *Change) error
	GetChange(ctx context.Context, id int64) (*Change, error)
	// ListChanges returns newest first; a nil operationID lists every change.
	ListChanges(ctx context.Context, operationID *int64) ([]*Change, error)
	DeleteAllChanges(ctx context.Context) error

	// Transaction management
	BeginTx(ctx context.Context) (context.Context, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
}
