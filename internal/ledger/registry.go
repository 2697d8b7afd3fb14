package ledger

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/ledenev737/BuhWise/internal/shared/errors"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// DefaultCurrencies are registered by Bootstrap on every start.
var DefaultCurrencies = []string{"USD", "EUR", "RUB"}

// Bootstrap registers the default currencies.
func (s *Service) Bootstrap(ctx context.Context) error {
	return s.inTx(ctx, func(txCtx context.Context) error {
		return s.ensureCurrencies(txCtx, DefaultCurrencies...)
	})
}

// ListCurrencies lists registered currencies ordered by code
func (s *Service) ListCurrencies(ctx context.Context, activeOnly bool) ([]*Currency, error) {
	currencies, err := s.repo.ListCurrencies(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.DatabaseError("failed to list currencies", err)
	}
	return currencies, nil
}

// AddCurrency registers a currency, or renames and re-flags it when the code
// already exists. Balance and rate rows are created as for lazy registration.
func (s *Service) AddCurrency(ctx context.Context, code, name string, active bool) (*Currency, error) {
	currency, err := newCurrency(code, name, active)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.ensureCurrencies(txCtx, currency.Code); err != nil {
			return err
		}
		if err := s.repo.UpsertCurrency(txCtx, currency); err != nil {
			return apperrors.DatabaseError("failed to save currency", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return currency, nil
}

// UpdateCurrency changes the display name and active flag of an existing
// currency. The code itself is immutable; deactivation never touches balances.
func (s *Service) UpdateCurrency(ctx context.Context, code, name string, active bool) (*Currency, error) {
	currency, err := newCurrency(code, name, active)
	if err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetCurrency(txCtx, currency.Code); err != nil {
			if errors.Is(err, ErrCurrencyNotFound) {
				return apperrors.NotFound(err, "currency")
			}
			return apperrors.DatabaseError("failed to load currency", err)
		}
		if err := s.repo.UpsertCurrency(txCtx, currency); err != nil {
			return apperrors.DatabaseError("failed to save currency", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return currency, nil
}

// ensureCurrencies lazily registers every non-empty code once.
func (s *Service) ensureCurrencies(ctx context.Context, codes ...string) error {
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = money.NormalizeCode(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if err := s.repo.EnsureCurrency(ctx, code); err != nil {
			return apperrors.DatabaseError("failed to register currency "+code, err)
		}
	}
	return nil
}

func newCurrency(code, name string, active bool) (*Currency, error) {
	code = money.NormalizeCode(code)
	if code == "" {
		return nil, apperrors.Validation(ErrInvalidCurrency, ErrInvalidCurrency.Error())
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation(ErrInvalidCurrencyName, ErrInvalidCurrencyName.Error())
	}
	return &Currency{Code: code, Name: name, IsActive: active}, nil
}
