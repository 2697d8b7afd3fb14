package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// LedgerRepository implements the repository interface using PostgreSQL
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// Currency operations

// EnsureCurrency inserts the currency with its balance and rate rows when missing.
// Uses ON CONFLICT DO NOTHING so concurrent registrations never collide.
func (r *LedgerRepository) EnsureCurrency(ctx context.Context, code string) error {
	initialRate := decimal.Zero
	if code == money.USD {
		initialRate = decimal.NewFromInt(1)
	}

	q := r.getQueryer(ctx)
	if _, err := q.Exec(ctx, `
		INSERT INTO currencies (code, name, is_active) VALUES ($1, $1, TRUE)
		ON CONFLICT (code) DO NOTHING`, code); err != nil {
		return fmt.Errorf("failed to insert currency: %w", err)
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO balances (currency, amount) VALUES ($1, 0)
		ON CONFLICT (currency) DO NOTHING`, code); err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO rates_to_usd (currency, rate) VALUES ($1, $2)
		ON CONFLICT (currency) DO NOTHING`, code, initialRate.String()); err != nil {
		return fmt.Errorf("failed to insert rate: %w", err)
	}
	return nil
}

// GetCurrency retrieves a currency by code
func (r *LedgerRepository) GetCurrency(ctx context.Context, code string) (*ledger.Currency, error) {
	var c ledger.Currency
	err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT code, name, is_active FROM currencies WHERE code = $1`, code,
	).Scan(&c.Code, &c.Name, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrCurrencyNotFound
		}
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &c, nil
}

// ListCurrencies lists currencies ordered by code
func (r *LedgerRepository) ListCurrencies(ctx context.Context, activeOnly bool) ([]*ledger.Currency, error) {
	query := `SELECT code, name, is_active FROM currencies`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`

	rows, err := r.getQueryer(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query currencies: %w", err)
	}
	defer rows.Close()

	var currencies []*ledger.Currency
	for rows.Next() {
		var c ledger.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		currencies = append(currencies, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating currencies: %w", err)
	}
	return currencies, nil
}

// UpsertCurrency inserts or updates a currency's name and active flag
func (r *LedgerRepository) UpsertCurrency(ctx context.Context, c *ledger.Currency) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO currencies (code, name, is_active) VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, is_active = EXCLUDED.is_active`,
		c.Code, c.Name, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert currency: %w", err)
	}
	return nil
}

// Operation operations

// NUMERIC columns are read as text and parsed, so no precision is lost
const operationColumns = `id, date, type, source_currency, source_amount::text, target_currency,
	target_amount::text, rate::text, commission::text, usd_equivalent::text, expense_category, comment`

// InsertOperation stores op and assigns its id
func (r *LedgerRepository) InsertOperation(ctx context.Context, op *ledger.Operation) error {
	var commission *string
	if op.Commission != nil {
		s := op.Commission.String()
		commission = &s
	}

	err := r.getQueryer(ctx).QueryRow(ctx, `
		INSERT INTO operations (date, type, source_currency, source_amount, target_currency, target_amount,
			rate, commission, usd_equivalent, expense_category, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		op.Date.UTC(),
		string(op.Kind),
		op.SourceCurrency,
		op.SourceAmount.String(),
		op.TargetCurrency,
		op.TargetAmount.String(),
		op.Rate.String(),
		commission,
		op.USDEquivalent.String(),
		op.ExpenseCategory,
		op.Comment,
	).Scan(&op.ID)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}
	return nil
}

// GetOperation retrieves an operation by id
func (r *LedgerRepository) GetOperation(ctx context.Context, id int64) (*ledger.Operation, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = $1`, id)

	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrOperationNotFound
		}
		return nil, err
	}
	return op, nil
}

// ListOperations lists operations ordered by (date, id)
func (r *LedgerRepository) ListOperations(ctx context.Context, newestFirst bool) ([]*ledger.Operation, error) {
	order := ` ORDER BY date ASC, id ASC`
	if newestFirst {
		order = ` ORDER BY date DESC, id DESC`
	}

	rows, err := r.getQueryer(ctx).Query(ctx, `SELECT `+operationColumns+` FROM operations`+order)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer rows.Close()

	var ops []*ledger.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}

// DeleteOperation removes one operation
func (r *LedgerRepository) DeleteOperation(ctx context.Context, id int64) error {
	if _, err := r.getQueryer(ctx).Exec(ctx, `DELETE FROM operations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

// DeleteAllOperations clears the operation log
func (r *LedgerRepository) DeleteAllOperations(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).Exec(ctx, `DELETE FROM operations`); err != nil {
		return fmt.Errorf("failed to delete operations: %w", err)
	}
	return nil
}

// Balance operations

// GetBalanceForUpdate reads a balance with row-level locking (SELECT FOR UPDATE).
// Missing rows read as zero.
func (r *LedgerRepository) GetBalanceForUpdate(ctx context.Context, code string) (decimal.Decimal, error) {
	query := `SELECT amount::text FROM balances WHERE currency = $1`
	if r.getTxFromContext(ctx) != nil {
		query += ` FOR UPDATE`
	}

	var amountStr string
	err := r.getQueryer(ctx).QueryRow(ctx, query, code).Scan(&amountStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return parseDecimal(amountStr, "balance")
}

// SetBalance overwrites a balance
func (r *LedgerRepository) SetBalance(ctx context.Context, code string, amount decimal.Decimal) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO balances (currency, amount) VALUES ($1, $2)
		ON CONFLICT (currency) DO UPDATE SET amount = EXCLUDED.amount`,
		code, amount.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// ListBalances lists balances ordered by currency
func (r *LedgerRepository) ListBalances(ctx context.Context) ([]*ledger.Balance, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `SELECT currency, amount::text FROM balances ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*ledger.Balance
	for rows.Next() {
		var (
			b         ledger.Balance
			amountStr string
		)
		if err := rows.Scan(&b.Currency, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		if b.Amount, err = parseDecimal(amountStr, "balance"); err != nil {
			return nil, err
		}
		balances = append(balances, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balances: %w", err)
	}
	return balances, nil
}

// ResetBalances zeroes every balance
func (r *LedgerRepository) ResetBalances(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).Exec(ctx, `UPDATE balances SET amount = 0`); err != nil {
		return fmt.Errorf("failed to reset balances: %w", err)
	}
	return nil
}

// Rate-to-USD operations

// GetRateToUSD reads a cached rate; unknown currencies read as zero
func (r *LedgerRepository) GetRateToUSD(ctx context.Context, code string) (decimal.Decimal, error) {
	var rateStr string
	err := r.getQueryer(ctx).QueryRow(ctx,
		`SELECT rate::text FROM rates_to_usd WHERE currency = $1`, code,
	).Scan(&rateStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get rate: %w", err)
	}
	return parseDecimal(rateStr, "rate")
}

// SetRateToUSD overwrites a cached rate
func (r *LedgerRepository) SetRateToUSD(ctx context.Context, code string, rate decimal.Decimal) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO rates_to_usd (currency, rate) VALUES ($1, $2)
		ON CONFLICT (currency) DO UPDATE SET rate = EXCLUDED.rate`,
		code, rate.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to set rate: %w", err)
	}
	return nil
}

// ListRatesToUSD lists cached rates ordered by currency
func (r *LedgerRepository) ListRatesToUSD(ctx context.Context) ([]*ledger.RateToUSD, error) {
	rows, err := r.getQueryer(ctx).Query(ctx, `SELECT currency, rate::text FROM rates_to_usd ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var rates []*ledger.RateToUSD
	for rows.Next() {
		var (
			rate    ledger.RateToUSD
			rateStr string
		)
		if err := rows.Scan(&rate.Currency, &rateStr); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		if rate.Rate, err = parseDecimal(rateStr, "rate"); err != nil {
			return nil, err
		}
		rates = append(rates, &rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rates: %w", err)
	}
	return rates, nil
}

// ResetRatesToUSD sets USD to 1 and every other cached rate to 0
func (r *LedgerRepository) ResetRatesToUSD(ctx context.Context) error {
	_, err := r.getQueryer(ctx).Exec(ctx,
		`UPDATE rates_to_usd SET rate = CASE WHEN currency = $1 THEN 1 ELSE 0 END`, money.USD)
	if err != nil {
		return fmt.Errorf("failed to reset rates: %w", err)
	}
	return nil
}

// Pair rate operations

// GetPairRate reads the remembered rate for an ordered pair
func (r *LedgerRepository) GetPairRate(ctx context.Context, from, to string) (*ledger.PairRate, error) {
	var (
		pr      ledger.PairRate
		rateStr string
	)
	err := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT from_currency, to_currency, rate::text, updated_at
		FROM pair_rates
		WHERE from_currency = $1 AND to_currency = $2`,
		from, to,
	).Scan(&pr.From, &pr.To, &rateStr, &pr.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrPairRateNotFound
		}
		return nil, fmt.Errorf("failed to get pair rate: %w", err)
	}

	if pr.Rate, err = parseDecimal(rateStr, "pair rate"); err != nil {
		return nil, err
	}
	pr.UpdatedAt = pr.UpdatedAt.UTC()
	return &pr, nil
}

// UpsertPairRate records the last rate used for an ordered pair
func (r *LedgerRepository) UpsertPairRate(ctx context.Context, pr *ledger.PairRate) error {
	_, err := r.getQueryer(ctx).Exec(ctx, `
		INSERT INTO pair_rates (from_currency, to_currency, rate, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_currency, to_currency)
		DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at`,
		pr.From, pr.To, pr.Rate.String(), pr.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pair rate: %w", err)
	}
	return nil
}

// ClearPairRates forgets every remembered pair rate
func (r *LedgerRepository) ClearPairRates(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).Exec(ctx, `DELETE FROM pair_rates`); err != nil {
		return fmt.Errorf("failed to clear pair rates: %w", err)
	}
	return nil
}

// Change log operations

// AppendChange inserts a change-log entry and assigns its id. Inside a
// transaction the insert runs in a savepoint: a failed statement would
// otherwise abort the surrounding transaction.
func (r *LedgerRepository) AppendChange(ctx context.Context, c *ledger.Change) error {
	query := `
		INSERT INTO operation_changes (operation_id, action, timestamp, snapshot, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	args := []any{c.OperationID, string(c.Action), c.Timestamp.UTC(), c.Snapshot, c.Reason}

	tx := r.getTxFromContext(ctx)
	if tx == nil {
		if err := r.pool.QueryRow(ctx, query, args...).Scan(&c.ID); err != nil {
			return fmt.Errorf("failed to insert change: %w", err)
		}
		return nil
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	if err := sp.QueryRow(ctx, query, args...).Scan(&c.ID); err != nil {
		_ = sp.Rollback(ctx)
		return fmt.Errorf("failed to insert change: %w", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// GetChange retrieves a change-log entry by id
func (r *LedgerRepository) GetChange(ctx context.Context, id int64) (*ledger.Change, error) {
	row := r.getQueryer(ctx).QueryRow(ctx, `
		SELECT id, operation_id, action, timestamp, snapshot, reason
		FROM operation_changes
		WHERE id = $1`, id)

	c, err := scanChange(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrChangeNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListChanges lists change-log entries newest first, optionally for one operation
func (r *LedgerRepository) ListChanges(ctx context.Context, operationID *int64) ([]*ledger.Change, error) {
	query := `SELECT id, operation_id, action, timestamp, snapshot, reason FROM operation_changes`
	var args []any
	if operationID != nil {
		query += ` WHERE operation_id = $1`
		args = append(args, *operationID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := r.getQueryer(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	var changes []*ledger.Change
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}
	return changes, nil
}

// DeleteAllChanges clears the change log
func (r *LedgerRepository) DeleteAllChanges(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).Exec(ctx, `DELETE FROM operation_changes`); err != nil {
		return fmt.Errorf("failed to delete changes: %w", err)
	}
	return nil
}

// Transaction management using pgx transactions
// Transactions are stored in context using txContextKey

type ctxKey string

const txContextKey ctxKey = "ledger_tx"

// BeginTx starts a new database transaction and stores it in the context
func (r *LedgerRepository) BeginTx(ctx context.Context) (context.Context, error) {
	if tx := r.getTxFromContext(ctx); tx != nil {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return context.WithValue(ctx, txContextKey, tx), nil
}

// CommitTx commits the database transaction from the context
func (r *LedgerRepository) CommitTx(ctx context.Context) error {
	tx := r.getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTx rolls back the database transaction from the context
func (r *LedgerRepository) RollbackTx(ctx context.Context) error {
	tx := r.getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}

	if err := tx.Rollback(ctx); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return nil
		}
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) getTxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey).(pgx.Tx); ok {
		return tx
	}
	return nil
}

type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getQueryer returns the transaction if one exists in context, otherwise returns the pool
func (r *LedgerRepository) getQueryer(ctx context.Context) queryer {
	if tx := r.getTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanOperation(row pgx.Row) (*ledger.Operation, error) {
	var (
		op                                    ledger.Operation
		kind                                  string
		sourceStr, targetStr, rateStr, usdStr string
		commissionStr                         *string
	)

	err := row.Scan(
		&op.ID,
		&op.Date,
		&kind,
		&op.SourceCurrency,
		&sourceStr,
		&op.TargetCurrency,
		&targetStr,
		&rateStr,
		&commissionStr,
		&usdStr,
		&op.ExpenseCategory,
		&op.Comment,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	op.Kind = ledger.OperationKind(kind)
	op.Date = op.Date.UTC()

	if op.SourceAmount, err = parseDecimal(sourceStr, "source_amount"); err != nil {
		return nil, err
	}
	if op.TargetAmount, err = parseDecimal(targetStr, "target_amount"); err != nil {
		return nil, err
	}
	if op.Rate, err = parseDecimal(rateStr, "rate"); err != nil {
		return nil, err
	}
	if op.USDEquivalent, err = parseDecimal(usdStr, "usd_equivalent"); err != nil {
		return nil, err
	}
	if commissionStr != nil {
		fee, err := parseDecimal(*commissionStr, "commission")
		if err != nil {
			return nil, err
		}
		op.Commission = &fee
	}

	return &op, nil
}

func scanChange(row pgx.Row) (*ledger.Change, error) {
	var (
		c         ledger.Change
		action    string
		timestamp time.Time
	)

	if err := row.Scan(&c.ID, &c.OperationID, &action, &timestamp, &c.Snapshot, &c.Reason); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan change: %w", err)
	}

	c.Action = ledger.ChangeAction(action)
	c.Timestamp = timestamp.UTC()
	return &c, nil
}

func parseDecimal(s, field string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s: %s", field, s)
	}
	return d, nil
}
