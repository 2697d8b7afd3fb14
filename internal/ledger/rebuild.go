package ledger

import (
	"context"
	"sort"

	apperrors "github.com/ledenev737/BuhWise/internal/shared/errors"
)

// RebuildProjections recomputes balances, the rate cache and pair memory by
// replaying every operation in (date, id) order.
func (s *Service) RebuildProjections(ctx context.Context) error {
	if err := s.inTx(ctx, s.rebuild); err != nil {
		return err
	}
	s.log.WithContext(ctx).Info("projections rebuilt")
	return nil
}

// ReconcileBalances compares stored balances with a replay of the log and
// returns every currency where they differ, ordered by code. An empty result
// means the ledger is consistent.
func (s *Service) ReconcileBalances(ctx context.Context) ([]BalanceMismatch, error) {
	ops, err := s.repo.ListOperations(ctx, false)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list operations", err)
	}
	stored, err := s.repo.ListBalances(ctx)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list balances", err)
	}

	computed := Project(ops)
	storedByCode := make(map[string]*Balance, len(stored))
	for _, b := range stored {
		storedByCode[b.Currency] = b
	}

	var mismatches []BalanceMismatch
	for _, b := range stored {
		want := computed[b.Currency]
		if !b.Amount.Equal(want) {
			mismatches = append(mismatches, BalanceMismatch{Currency: b.Currency, Stored: b.Amount, Computed: want})
		}
	}
	for code, want := range computed {
		if _, ok := storedByCode[code]; !ok && !want.IsZero() {
			mismatches = append(mismatches, BalanceMismatch{Currency: code, Computed: want})
		}
	}

	sort.Slice(mismatches, func(i, j int) bool {
		return mismatches[i].Currency < mismatches[j].Currency
	})

	if len(mismatches) > 0 {
		s.log.WithContext(ctx).Warn("balance mismatch detected", "currencies", len(mismatches))
	}
	return mismatches, nil
}

func (s *Service) rebuild(ctx context.Context) error {
	if err := s.resetProjections(ctx); err != nil {
		return err
	}

	ops, err := s.repo.ListOperations(ctx, false)
	if err != nil {
		return apperrors.DatabaseError("failed to list operations", err)
	}

	for _, op := range ops {
		if err := s.project(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) resetProjections(ctx context.Context) error {
	if err := s.repo.ResetBalances(ctx); err != nil {
		return apperrors.DatabaseError("failed to reset balances", err)
	}
	if err := s.repo.ResetRatesToUSD(ctx); err != nil {
		return apperrors.DatabaseError("failed to reset rate cache", err)
	}
	if err := s.repo.ClearPairRates(ctx); err != nil {
		return apperrors.DatabaseError("failed to clear pair rates", err)
	}
	return nil
}
