package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
)

// FxDisplayRepository stores per-pair rate display preferences in PostgreSQL
type FxDisplayRepository struct {
	pool *pgxpool.Pool
}

// NewFxDisplayRepository creates a new PostgreSQL display preference repository
func NewFxDisplayRepository(pool *pgxpool.Pool) *FxDisplayRepository {
	return &FxDisplayRepository{pool: pool}
}

var _ fxdisplay.Repository = (*FxDisplayRepository)(nil)

// GetPreference retrieves the preference of an ordered pair
func (r *FxDisplayRepository) GetPreference(ctx context.Context, from, to string) (*fxdisplay.Preference, error) {
	var (
		pref fxdisplay.Preference
		mode string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT from_currency, to_currency, mode, updated_at
		FROM fx_display_preferences
		WHERE from_currency = $1 AND to_currency = $2`,
		from, to,
	).Scan(&pref.From, &pref.To, &mode, &pref.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fxdisplay.ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("failed to get display preference: %w", err)
	}

	pref.Mode = fxdisplay.Mode(mode)
	pref.UpdatedAt = pref.UpdatedAt.UTC()
	return &pref, nil
}

// UpsertPreference inserts or replaces the preference of an ordered pair
func (r *FxDisplayRepository) UpsertPreference(ctx context.Context, pref *fxdisplay.Preference) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO fx_display_preferences (from_currency, to_currency, mode, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_currency, to_currency)
		DO UPDATE SET mode = EXCLUDED.mode, updated_at = EXCLUDED.updated_at`,
		pref.From, pref.To, string(pref.Mode), pref.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert display preference: %w", err)
	}
	return nil
}
