package fxdisplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// Service converts between the canonical (direct) rate the ledger stores and
// the form the user prefers to read and type for each pair.
type Service struct {
	repo  Repository
	rates PairRateReader
	now   func() time.Time
}

// NewService creates a new display preference service
func NewService(repo Repository, rates PairRateReader) *Service {
	return &Service{repo: repo, rates: rates, now: time.Now}
}

// GetMode returns the display mode of a pair; pairs without a preference are Direct.
func (s *Service) GetMode(ctx context.Context, from, to string) (Mode, error) {
	from, to = money.NormalizeCode(from), money.NormalizeCode(to)
	if from == "" || to == "" {
		return ModeDirect, nil
	}

	pref, err := s.repo.GetPreference(ctx, from, to)
	if errors.Is(err, ErrPreferenceNotFound) {
		return ModeDirect, nil
	}
	if err != nil {
		return ModeDirect, fmt.Errorf("failed to get display preference: %w", err)
	}
	if !pref.Mode.IsValid() {
		return ModeDirect, nil
	}
	return pref.Mode, nil
}

// SetMode stores the display mode of a pair
func (s *Service) SetMode(ctx context.Context, from, to string, mode Mode) (*Preference, error) {
	from, to = money.NormalizeCode(from), money.NormalizeCode(to)
	if from == "" || to == "" {
		return nil, ErrInvalidPair
	}
	if !mode.IsValid() {
		return nil, ErrInvalidMode
	}

	pref := &Preference{From: from, To: to, Mode: mode, UpdatedAt: s.now().UTC()}
	if err := s.repo.UpsertPreference(ctx, pref); err != nil {
		return nil, fmt.Errorf("failed to save display preference: %w", err)
	}
	return pref, nil
}

// DisplayRate converts a canonical rate of the pair into its display form.
func (s *Service) DisplayRate(ctx context.Context, from, to string, internal decimal.Decimal) (decimal.Decimal, error) {
	mode, err := s.GetMode(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return ToDisplayRate(internal, mode), nil
}

// InternalRate converts a rate typed in the pair's display form into the canonical rate.
func (s *Service) InternalRate(ctx context.Context, from, to string, display decimal.Decimal) (decimal.Decimal, error) {
	mode, err := s.GetMode(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return ToInternalRate(display, mode)
}

// Suggest returns the pair's last remembered rate in both forms.
func (s *Service) Suggest(ctx context.Context, from, to string) (*Suggestion, error) {
	from, to = money.NormalizeCode(from), money.NormalizeCode(to)
	if from == "" || to == "" {
		return nil, ErrInvalidPair
	}

	last, err := s.rates.GetLastPairRate(ctx, from, to)
	if errors.Is(err, ledger.ErrPairRateNotFound) {
		return nil, ErrNoRememberedRate
	}
	if err != nil {
		return nil, err
	}

	mode, err := s.GetMode(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Suggestion{
		From:         from,
		To:           to,
		Mode:         mode,
		InternalRate: last.Rate,
		DisplayRate:  ToDisplayRate(last.Rate, mode),
		UpdatedAt:    last.UpdatedAt,
	}, nil
}

// ToDisplayRate converts a canonical rate for display. Non-positive rates display as 0.
func ToDisplayRate(internal decimal.Decimal, mode Mode) decimal.Decimal {
	if !internal.IsPositive() {
		return decimal.Zero
	}
	if mode == ModeInverted {
		return decimal.NewFromInt(1).Div(internal)
	}
	return internal
}

// ToInternalRate converts a displayed rate back to the canonical form.
func ToInternalRate(display decimal.Decimal, mode Mode) (decimal.Decimal, error) {
	if !display.IsPositive() {
		return decimal.Zero, ErrInvalidRate
	}
	if mode == ModeInverted {
		return decimal.NewFromInt(1).Div(display), nil
	}
	return display, nil
}
