package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/ledenev737/BuhWise/internal/shared/errors"
	"github.com/ledenev737/BuhWise/pkg/logger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// Service orchestrates the ledger operations.
// Every public mutation runs in exactly one store transaction; the operation
// log, balances, rate cache, pair memory and change log move together.
type Service struct {
	repo            Repository
	log             *logger.Logger
	now             func() time.Time
	rebuildOnDelete bool
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for change-log and pair-memory timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRebuildOnDelete makes DeleteOperation recompute every projection from
// the remaining log, so rate caches and pair memory forget the deleted operation.
func WithRebuildOnDelete(enabled bool) Option {
	return func(s *Service) { s.rebuildOnDelete = enabled }
}

// NewService creates a new ledger service
func NewService(repo Repository, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		log:  log.WithField("component", "ledger"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOperation validates, derives and records a new operation.
//
// Steps:
// 1. Normalize and validate the draft (nothing is persisted on failure)
// 2. Ensure both currencies are registered
// 3. Derive target amount, canonical rate and USD equivalent
// 4. Check funds for Expense and Exchange
// 5. Insert the operation
// 6. Apply balance deltas, rate cache and pair memory
// 7. Append the Create change (best effort)
func (s *Service) CreateOperation(ctx context.Context, draft Draft) (*Operation, error) {
	// Step 1: Validate before touching the store
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, apperrors.Validation(err, err.Error())
	}

	var created *Operation
	err := s.inTx(ctx, func(txCtx context.Context) error {
		// Step 2: Lazily register currencies
		if err := s.ensureCurrencies(txCtx, draft.SourceCurrency, draft.TargetCurrency); err != nil {
			return err
		}

		// Step 3: Derive the operation
		op, err := Derive(&draft, s.cachedRate(txCtx))
		if err != nil {
			return apperrors.DatabaseError("failed to derive operation", err)
		}

		// Step 4: Funds check
		if op.Kind.Spends() {
			if err := s.checkFunds(txCtx, op.SourceCurrency, op.SourceAmount); err != nil {
				return err
			}
		}

		// Step 5: Persist
		if err := s.repo.InsertOperation(txCtx, op); err != nil {
			return apperrors.DatabaseError("failed to insert operation", err)
		}

		// Step 6: Projections
		if err := s.project(txCtx, op); err != nil {
			return err
		}

		// Step 7: Audit trail
		s.appendChange(txCtx, ActionCreate, op, nil)

		created = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("operation created",
		"operation_id", created.ID,
		"kind", created.Kind,
		"source_currency", created.SourceCurrency,
		"source_amount", created.SourceAmount.String(),
	)
	return created, nil
}

// DeleteOperation removes an operation and reverses its balance effect.
// Deleting an unknown id is a no-op. The rate cache and pair memory keep the
// values the operation wrote unless the service was built WithRebuildOnDelete.
func (s *Service) DeleteOperation(ctx context.Context, id int64, reason *string) error {
	reason = blankToNil(reason)

	deleted := false
	err := s.inTx(ctx, func(txCtx context.Context) error {
		op, err := s.repo.GetOperation(txCtx, id)
		if errors.Is(err, ErrOperationNotFound) {
			return nil
		}
		if err != nil {
			return apperrors.DatabaseError("failed to load operation", err)
		}

		if err := s.applyDeltas(txCtx, InverseBalanceDeltas(op)); err != nil {
			return err
		}

		if err := s.repo.DeleteOperation(txCtx, id); err != nil {
			return apperrors.DatabaseError("failed to delete operation", err)
		}

		if s.rebuildOnDelete {
			if err := s.rebuild(txCtx); err != nil {
				return err
			}
		}

		s.appendChange(txCtx, ActionDelete, op, reason)
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		s.log.WithContext(ctx).Info("operation deleted", "operation_id", id)
	}
	return nil
}

// RestoreOperation re-creates the operation captured by a Delete change.
//
// Steps:
// 1. Load the change and decode its snapshot (RestoreFailed on any problem)
// 2. Ensure currencies are registered
// 3. Insert the snapshot as a new operation with a fresh id
// 4. Rebuild balances, rate cache and pair memory from the whole log
// 5. Append the Restore change (best effort)
func (s *Service) RestoreOperation(ctx context.Context, changeID int64) (*Operation, error) {
	var restored *Operation
	err := s.inTx(ctx, func(txCtx context.Context) error {
		// Step 1: Load and decode
		change, err := s.repo.GetChange(txCtx, changeID)
		if errors.Is(err, ErrChangeNotFound) {
			return restoreFailed(ErrChangeNotFound, fmt.Sprintf("change #%d does not exist", changeID))
		}
		if err != nil {
			return apperrors.DatabaseError("failed to load change", err)
		}
		if change.Action != ActionDelete {
			return restoreFailed(ErrNotADeleteChange, fmt.Sprintf("change #%d is a %s change", changeID, change.Action))
		}

		op, err := DecodeSnapshot(change.Snapshot)
		if err != nil {
			return restoreFailed(err, fmt.Sprintf("change #%d has an unreadable snapshot", changeID))
		}

		// Step 2: Currencies
		if err := s.ensureCurrencies(txCtx, op.SourceCurrency, op.TargetCurrency); err != nil {
			return err
		}

		// Step 3: Insert as a new operation
		op.ID = 0
		if err := s.repo.InsertOperation(txCtx, op); err != nil {
			return apperrors.DatabaseError("failed to insert restored operation", err)
		}

		// Step 4: Full rebuild keeps the projections equal to a replay of the log
		if err := s.rebuild(txCtx); err != nil {
			return err
		}

		// Step 5: Audit trail
		reason := fmt.Sprintf("Restored from change #%d", changeID)
		s.appendChange(txCtx, ActionRestore, op, &reason)

		restored = op
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithContext(ctx).Info("operation restored",
		"operation_id", restored.ID,
		"change_id", changeID,
	)
	return restored, nil
}

// ReplaceAllOperations discards the operation log and change history and
// loads ops in their place, sorted by (date, id). Exchange rates are
// recomputed from the amounts; no funds check is made and no change-log
// entries are written. A single invalid operation rejects the whole batch.
func (s *Service) ReplaceAllOperations(ctx context.Context, ops []Operation) error {
	prepared := make([]*Operation, 0, len(ops))
	for i := range ops {
		op := ops[i]
		if err := prepareImported(&op); err != nil {
			wrapped := fmt.Errorf("%w: operation %d: %w", ErrInvalidImportedOperation, i+1, err)
			return apperrors.Validation(wrapped, wrapped.Error())
		}
		prepared = append(prepared, &op)
	}

	sort.SliceStable(prepared, func(i, j int) bool {
		return operationLess(prepared[i], prepared[j])
	})

	err := s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.DeleteAllOperations(txCtx); err != nil {
			return apperrors.DatabaseError("failed to clear operations", err)
		}
		if err := s.repo.DeleteAllChanges(txCtx); err != nil {
			return apperrors.DatabaseError("failed to clear change log", err)
		}
		if err := s.resetProjections(txCtx); err != nil {
			return err
		}

		for _, op := range prepared {
			if err := s.ensureCurrencies(txCtx, op.SourceCurrency, op.TargetCurrency); err != nil {
				return err
			}
			op.ID = 0
			if err := s.repo.InsertOperation(txCtx, op); err != nil {
				return apperrors.DatabaseError("failed to insert operation", err)
			}
			if err := s.project(txCtx, op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithContext(ctx).Info("operations replaced", "count", len(prepared))
	return nil
}

// GetOperations lists operations newest first
func (s *Service) GetOperations(ctx context.Context) ([]*Operation, error) {
	ops, err := s.repo.ListOperations(ctx, true)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list operations", err)
	}
	return ops, nil
}

// GetOperation retrieves an operation by ID
func (s *Service) GetOperation(ctx context.Context, id int64) (*Operation, error) {
	op, err := s.repo.GetOperation(ctx, id)
	if errors.Is(err, ErrOperationNotFound) {
		return nil, apperrors.NotFound(err, "operation")
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load operation", err)
	}
	return op, nil
}

// GetBalances lists the balance of every registered currency
func (s *Service) GetBalances(ctx context.Context) ([]*Balance, error) {
	balances, err := s.repo.ListBalances(ctx)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list balances", err)
	}
	return balances, nil
}

// GetRatesToUSD lists the cached rate to USD of every registered currency
func (s *Service) GetRatesToUSD(ctx context.Context) ([]*RateToUSD, error) {
	rates, err := s.repo.ListRatesToUSD(ctx)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list rates", err)
	}
	return rates, nil
}

// GetLastPairRate returns the last canonical rate used to exchange from into to.
func (s *Service) GetLastPairRate(ctx context.Context, from, to string) (*PairRate, error) {
	rate, err := s.repo.GetPairRate(ctx, money.NormalizeCode(from), money.NormalizeCode(to))
	if errors.Is(err, ErrPairRateNotFound) {
		return nil, apperrors.NotFound(err, "pair rate")
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load pair rate", err)
	}
	return rate, nil
}

// GetOperationChanges lists change-log entries newest first, optionally for one operation.
func (s *Service) GetOperationChanges(ctx context.Context, operationID *int64) ([]*Change, error) {
	changes, err := s.repo.ListChanges(ctx, operationID)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list changes", err)
	}
	return changes, nil
}

// MaxExchangeAmount returns the balance of code rounded down to cents, the
// most an exchange can spend. Rounding down keeps the amount payable.
func (s *Service) MaxExchangeAmount(ctx context.Context, code string) (decimal.Decimal, error) {
	code = money.NormalizeCode(code)
	if code == "" {
		return decimal.Zero, apperrors.Validation(ErrInvalidCurrency, ErrInvalidCurrency.Error())
	}

	balances, err := s.GetBalances(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, b := range balances {
		if b.Currency != code {
			continue
		}
		if available := b.Amount.Truncate(2); available.IsPositive() {
			return available, nil
		}
		break
	}
	return decimal.Zero, apperrors.InsufficientBalance(ErrInsufficientFunds, fmt.Sprintf("no %s available", code))
}

// inTx runs fn inside a store transaction and commits when fn succeeds.
func (s *Service) inTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	txCtx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return apperrors.DatabaseError("failed to begin transaction", err)
	}

	// Ensure rollback on error
	committed := false
	defer func() {
		if !committed {
			_ = s.repo.RollbackTx(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := s.repo.CommitTx(txCtx); err != nil {
		return apperrors.DatabaseError("failed to commit transaction", err)
	}

	committed = true
	return nil
}

func (s *Service) cachedRate(ctx context.Context) RateLookup {
	return func(code string) (decimal.Decimal, error) {
		return s.repo.GetRateToUSD(ctx, code)
	}
}

func (s *Service) checkFunds(ctx context.Context, code string, amount decimal.Decimal) error {
	balance, err := s.repo.GetBalanceForUpdate(ctx, code)
	if err != nil {
		return apperrors.DatabaseError("failed to read balance", err)
	}
	if !money.Covers(balance, amount) {
		return apperrors.InsufficientBalance(ErrInsufficientFunds,
			fmt.Sprintf("insufficient %s: available %s, required %s", code, balance.String(), amount.String()))
	}
	return nil
}

// project applies the balance, rate-cache and pair-memory effects of op.
func (s *Service) project(ctx context.Context, op *Operation) error {
	if err := s.applyDeltas(ctx, BalanceDeltas(op)); err != nil {
		return err
	}

	for _, r := range RateUpdates(op) {
		if err := s.repo.SetRateToUSD(ctx, r.Currency, r.Rate); err != nil {
			return apperrors.DatabaseError("failed to update rate cache", err)
		}
	}

	if pair, ok := PairRateUpdate(op, s.now()); ok {
		if err := s.repo.UpsertPairRate(ctx, pair); err != nil {
			return apperrors.DatabaseError("failed to update pair rate", err)
		}
	}

	return nil
}

func (s *Service) applyDeltas(ctx context.Context, deltas []BalanceDelta) error {
	for _, d := range deltas {
		// FOR UPDATE where supported; we are always inside inTx here
		current, err := s.repo.GetBalanceForUpdate(ctx, d.Currency)
		if err != nil {
			return apperrors.DatabaseError("failed to read balance", err)
		}
		if err := s.repo.SetBalance(ctx, d.Currency, current.Add(d.Amount)); err != nil {
			return apperrors.DatabaseError("failed to update balance", err)
		}
	}
	return nil
}

// appendChange writes a change-log entry. Failures are logged and swallowed:
// the audit trail never blocks a ledger mutation.
func (s *Service) appendChange(ctx context.Context, action ChangeAction, op *Operation, reason *string) {
	snapshot, err := EncodeSnapshot(op)
	if err == nil {
		id := op.ID
		err = s.repo.AppendChange(ctx, &Change{
			OperationID: &id,
			Action:      action,
			Timestamp:   s.now().UTC(),
			Snapshot:    snapshot,
			Reason:      reason,
		})
	}
	if err != nil {
		s.log.WithContext(ctx).
			WithError(fmt.Errorf("%w: %w", ErrChangeLogWrite, err)).
			Error("change log write failed", "operation_id", op.ID, "action", action)
	}
}

func restoreFailed(cause error, message string) error {
	return apperrors.RestoreFailed(fmt.Errorf("%w: %w", ErrRestoreFailed, cause), message)
}

func operationLess(a, b *Operation) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

// prepareImported canonicalizes an operation loaded from outside the engine.
func prepareImported(op *Operation) error {
	if op.Date.IsZero() {
		return ErrMissingDate
	}
	if !op.Kind.IsValid() {
		return ErrInvalidOperationKind
	}

	op.Date = op.Date.UTC()
	op.SourceCurrency = money.NormalizeCode(op.SourceCurrency)
	op.TargetCurrency = money.NormalizeCode(op.TargetCurrency)
	op.ExpenseCategory = blankToNil(op.ExpenseCategory)
	op.Comment = blankToNil(op.Comment)

	if op.SourceCurrency == "" {
		return ErrInvalidCurrency
	}
	if op.SourceAmount.IsNegative() || op.TargetAmount.IsNegative() {
		return ErrInvalidAmount
	}

	switch op.Kind {
	case KindExchange:
		if op.TargetCurrency == "" {
			return ErrInvalidCurrency
		}
		if op.SourceAmount.IsPositive() {
			op.Rate = CanonicalRate(op.SourceAmount, op.TargetAmount)
		}
	default:
		op.TargetCurrency = op.SourceCurrency
		op.TargetAmount = op.SourceAmount
	}

	if op.Rate.IsNegative() {
		return ErrInvalidRate
	}
	return nil
}
