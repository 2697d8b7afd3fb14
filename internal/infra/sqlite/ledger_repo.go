package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// LedgerRepository implements ledger.Repository on SQLite
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new SQLite ledger repository
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db.conn}
}

var _ ledger.Repository = (*LedgerRepository)(nil)

// Currency operations

// EnsureCurrency inserts the currency with its balance and rate rows when missing
func (r *LedgerRepository) EnsureCurrency(ctx context.Context, code string) error {
	initialRate := decimal.Zero
	if code == money.USD {
		initialRate = decimal.NewFromInt(1)
	}

	q := r.getQueryer(ctx)
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO currencies (code, name, is_active) VALUES (?, ?, 1)`,
		code, code,
	); err != nil {
		return fmt.Errorf("failed to insert currency: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO balances (currency, amount) VALUES (?, ?)`,
		code, decimal.Zero,
	); err != nil {
		return fmt.Errorf("failed to insert balance: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO rates_to_usd (currency, rate) VALUES (?, ?)`,
		code, initialRate,
	); err != nil {
		return fmt.Errorf("failed to insert rate: %w", err)
	}
	return nil
}

// GetCurrency retrieves a currency by code
func (r *LedgerRepository) GetCurrency(ctx context.Context, code string) (*ledger.Currency, error) {
	var c ledger.Currency
	err := r.getQueryer(ctx).QueryRowContext(ctx,
		`SELECT code, name, is_active FROM currencies WHERE code = ?`, code,
	).Scan(&c.Code, &c.Name, &c.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrCurrencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get currency: %w", err)
	}
	return &c, nil
}

// ListCurrencies lists currencies ordered by code
func (r *LedgerRepository) ListCurrencies(ctx context.Context, activeOnly bool) ([]*ledger.Currency, error) {
	query := `SELECT code, name, is_active FROM currencies`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY code`

	rows, err := r.getQueryer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
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
	return currencies, rows.Err()
}

// UpsertCurrency inserts or updates a currency's name and active flag
func (r *LedgerRepository) UpsertCurrency(ctx context.Context, c *ledger.Currency) error {
	_, err := r.getQueryer(ctx).ExecContext(ctx, `
		INSERT INTO currencies (code, name, is_active) VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET name = excluded.name, is_active = excluded.is_active`,
		c.Code, c.Name, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert currency: %w", err)
	}
	return nil
}

// Operation operations

const operationColumns = `id, date, type, source_currency, source_amount, target_currency, target_amount,
	rate, commission, usd_equivalent, expense_category, comment`

// InsertOperation stores op and assigns its id
func (r *LedgerRepository) InsertOperation(ctx context.Context, op *ledger.Operation) error {
	res, err := r.getQueryer(ctx).ExecContext(ctx, `
		INSERT INTO operations (date, type, source_currency, source_amount, target_currency, target_amount,
			rate, commission, usd_equivalent, expense_category, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(op.Date),
		string(op.Kind),
		op.SourceCurrency,
		op.SourceAmount,
		op.TargetCurrency,
		op.TargetAmount,
		op.Rate,
		nullDecimal(op.Commission),
		op.USDEquivalent,
		op.ExpenseCategory,
		op.Comment,
	)
	if err != nil {
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read operation id: %w", err)
	}
	op.ID = id
	return nil
}

// GetOperation retrieves an operation by id
func (r *LedgerRepository) GetOperation(ctx context.Context, id int64) (*ledger.Operation, error) {
	row := r.getQueryer(ctx).QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)

	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrOperationNotFound
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ListOperations lists operations ordered by (date, id)
func (r *LedgerRepository) ListOperations(ctx context.Context, newestFirst bool) ([]*ledger.Operation, error) {
	order := `ORDER BY date ASC, id ASC`
	if newestFirst {
		order = `ORDER BY date DESC, id DESC`
	}

	rows, err := r.getQueryer(ctx).QueryContext(ctx, `SELECT `+operationColumns+` FROM operations `+order)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
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
	return ops, rows.Err()
}

// DeleteOperation removes one operation
func (r *LedgerRepository) DeleteOperation(ctx context.Context, id int64) error {
	if _, err := r.getQueryer(ctx).ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete operation: %w", err)
	}
	return nil
}

// DeleteAllOperations removes every operation
func (r *LedgerRepository) DeleteAllOperations(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).ExecContext(ctx, `DELETE FROM operations`); err != nil {
		return fmt.Errorf("failed to delete operations: %w", err)
	}
	return nil
}

// Balance operations

// GetBalanceForUpdate reads a balance. The single connection already
// serializes writers, so no explicit lock is taken.
func (r *LedgerRepository) GetBalanceForUpdate(ctx context.Context, code string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := r.getQueryer(ctx).QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE currency = ?`, code,
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return amount, nil
}

// SetBalance overwrites a balance
func (r *LedgerRepository) SetBalance(ctx context.Context, code string, amount decimal.Decimal) error {
	_, err := r.getQueryer(ctx).ExecContext(ctx, `
		INSERT INTO balances (currency, amount) VALUES (?, ?)
		ON CONFLICT (currency) DO UPDATE SET amount = excluded.amount`,
		code, amount,
	)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	return nil
}

// ListBalances lists balances ordered by currency
func (r *LedgerRepository) ListBalances(ctx context.Context) ([]*ledger.Balance, error) {
	rows, err := r.getQueryer(ctx).QueryContext(ctx, `SELECT currency, amount FROM balances ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	defer rows.Close()

	var balances []*ledger.Balance
	for rows.Next() {
		var b ledger.Balance
		if err := rows.Scan(&b.Currency, &b.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, &b)
	}
	return balances, rows.Err()
}

// ResetBalances sets every balance to zero
func (r *LedgerRepository) ResetBalances(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).ExecContext(ctx, `UPDATE balances SET amount = ?`, decimal.Zero); err != nil {
		return fmt.Errorf("failed to reset balances: %w", err)
	}
	return nil
}

// Rate-to-USD operations

// GetRateToUSD reads a cached rate; unknown currencies read as zero
func (r *LedgerRepository) GetRateToUSD(ctx context.Context, code string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.getQueryer(ctx).QueryRowContext(ctx,
		`SELECT rate FROM rates_to_usd WHERE currency = ?`, code,
	).Scan(&rate)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get rate: %w", err)
	}
	return rate, nil
}

// SetRateToUSD overwrites a cached rate
func (r *LedgerRepository) SetRateToUSD(ctx context.Context, code string, rate decimal.Decimal) error {
	_, err := r.getQueryer(ctx).ExecContext(ctx, `
		INSERT INTO rates_to_usd (currency, rate) VALUES (?, ?)
		ON CONFLICT (currency) DO UPDATE SET rate = excluded.rate`,
		code, rate,
	)
	if err != nil {
		return fmt.Errorf("failed to set rate: %w", err)
	}
	return nil
}

// ListRatesToUSD lists cached rates ordered by currency
func (r *LedgerRepository) ListRatesToUSD(ctx context.Context) ([]*ledger.RateToUSD, error) {
	rows, err := r.getQueryer(ctx).QueryContext(ctx, `SELECT currency, rate FROM rates_to_usd ORDER BY currency`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rates: %w", err)
	}
	defer rows.Close()

	var rates []*ledger.RateToUSD
	for rows.Next() {
		var rt ledger.RateToUSD
		if err := rows.Scan(&rt.Currency, &rt.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, &rt)
	}
	return rates, rows.Err()
}

// ResetRatesToUSD sets USD to 1 and every other rate to 0
func (r *LedgerRepository) ResetRatesToUSD(ctx context.Context) error {
	_, err := r.getQueryer(ctx).ExecContext(ctx,
		`UPDATE rates_to_usd SET rate = CASE WHEN currency = ? THEN ? ELSE ? END`,
		money.USD, decimal.NewFromInt(1), decimal.Zero,
	)
	if err != nil {
		return fmt.Errorf("failed to reset rates: %w", err)
	}
	return nil
}

// Pair rate operations

// GetPairRate reads the remembered rate for an ordered pair
func (r *LedgerRepository) GetPairRate(ctx context.Context, from, to string) (*ledger.PairRate, error) {
	var (
		pr        ledger.PairRate
		updatedAt string
	)
	err := r.getQueryer(ctx).QueryRowContext(ctx,
		`SELECT from_currency, to_currency, rate, updated_at FROM pair_rates WHERE from_currency = ? AND to_currency = ?`,
		from, to,
	).Scan(&pr.From, &pr.To, &pr.Rate, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrPairRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pair rate: %w", err)
	}

	if pr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &pr, nil
}

// UpsertPairRate overwrites the remembered rate for an ordered pair
func (r *LedgerRepository) UpsertPairRate(ctx context.Context, pr *ledger.PairRate) error {
	_, err := r.getQueryer(ctx).ExecContext(ctx, `
		INSERT INTO pair_rates (from_currency, to_currency, rate, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency) DO UPDATE SET rate = excluded.rate, updated_at = excluded.updated_at`,
		pr.From, pr.To, pr.Rate, formatTime(pr.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pair rate: %w", err)
	}
	return nil
}

// ClearPairRates forgets every remembered pair rate
func (r *LedgerRepository) ClearPairRates(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).ExecContext(ctx, `DELETE FROM pair_rates`); err != nil {
		return fmt.Errorf("failed to clear pair rates: %w", err)
	}
	return nil
}

// Change log operations

// AppendChange inserts a change-log entry. Inside a transaction the insert
// runs under a savepoint so a failure leaves the transaction usable.
func (r *LedgerRepository) AppendChange(ctx context.Context, c *ledger.Change) error {
	q := r.getQueryer(ctx)
	_, inTx := q.(*sql.Tx)

	if inTx {
		if _, err := q.ExecContext(ctx, `SAVEPOINT change_log`); err != nil {
			return fmt.Errorf("failed to open savepoint: %w", err)
		}
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO operation_changes (operation_id, action, timestamp, snapshot, reason)
		VALUES (?, ?, ?, ?, ?)`,
		c.OperationID, string(c.Action), formatTime(c.Timestamp), c.Snapshot, c.Reason,
	)
	if err != nil {
		if inTx {
			_, _ = q.ExecContext(ctx, `ROLLBACK TO change_log`)
			_, _ = q.ExecContext(ctx, `RELEASE change_log`)
		}
		return fmt.Errorf("failed to insert change: %w", err)
	}

	if inTx {
		if _, err := q.ExecContext(ctx, `RELEASE change_log`); err != nil {
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
	}

	if id, err := res.LastInsertId(); err == nil {
		c.ID = id
	}
	return nil
}

// GetChange retrieves a change-log entry by id
func (r *LedgerRepository) GetChange(ctx context.Context, id int64) (*ledger.Change, error) {
	row := r.getQueryer(ctx).QueryRowContext(ctx,
		`SELECT id, operation_id, action, timestamp, snapshot, reason FROM operation_changes WHERE id = ?`, id)

	c, err := scanChange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrChangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListChanges lists change-log entries newest first
func (r *LedgerRepository) ListChanges(ctx context.Context, operationID *int64) ([]*ledger.Change, error) {
	query := `SELECT id, operation_id, action, timestamp, snapshot, reason FROM operation_changes`
	var args []any
	if operationID != nil {
		query += ` WHERE operation_id = ?`
		args = append(args, *operationID)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := r.getQueryer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list changes: %w", err)
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
	return changes, rows.Err()
}

// DeleteAllChanges clears the change log
func (r *LedgerRepository) DeleteAllChanges(ctx context.Context) error {
	if _, err := r.getQueryer(ctx).ExecContext(ctx, `DELETE FROM operation_changes`); err != nil {
		return fmt.Errorf("failed to delete changes: %w", err)
	}
	return nil
}

// Transaction management
// Transactions are stored in context using txContextKey

type ctxKey string

const txContextKey ctxKey = "sqlite_tx"

// BeginTx starts a new database transaction and stores it in the context
func (r *LedgerRepository) BeginTx(ctx context.Context) (context.Context, error) {
	if tx := getTxFromContext(ctx); tx != nil {
		return ctx, fmt.Errorf("transaction already in progress")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return context.WithValue(ctx, txContextKey, tx), nil
}

// CommitTx commits the database transaction from the context
func (r *LedgerRepository) CommitTx(ctx context.Context) error {
	tx := getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTx rolls back the database transaction from the context
func (r *LedgerRepository) RollbackTx(ctx context.Context) error {
	tx := getTxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("no transaction in context")
	}

	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func getTxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txContextKey).(*sql.Tx); ok {
		return tx
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getQueryer returns the transaction if one exists in context, otherwise the pool
func (r *LedgerRepository) getQueryer(ctx context.Context) queryer {
	if tx := getTxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// scanning helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*ledger.Operation, error) {
	var (
		op         ledger.Operation
		date, kind string
		commission decimal.NullDecimal
		category   sql.NullString
		comment    sql.NullString
	)

	err := row.Scan(
		&op.ID,
		&date,
		&kind,
		&op.SourceCurrency,
		&op.SourceAmount,
		&op.TargetCurrency,
		&op.TargetAmount,
		&op.Rate,
		&commission,
		&op.USDEquivalent,
		&category,
		&comment,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan operation: %w", err)
	}

	if op.Date, err = parseTime(date); err != nil {
		return nil, err
	}
	op.Kind = ledger.OperationKind(kind)
	if commission.Valid {
		c := commission.Decimal
		op.Commission = &c
	}
	op.ExpenseCategory = nullString(category)
	op.Comment = nullString(comment)

	return &op, nil
}

func scanChange(row rowScanner) (*ledger.Change, error) {
	var (
		c           ledger.Change
		operationID sql.NullInt64
		action, ts  string
		reason      sql.NullString
	)

	if err := row.Scan(&c.ID, &operationID, &action, &ts, &c.Snapshot, &reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan change: %w", err)
	}

	var err error
	if c.Timestamp, err = parseTime(ts); err != nil {
		return nil, err
	}
	if operationID.Valid {
		id := operationID.Int64
		c.OperationID = &id
	}
	c.Action = ledger.ChangeAction(action)
	c.Reason = nullString(reason)

	return &c, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by other tools may use plain RFC 3339
		if t, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
