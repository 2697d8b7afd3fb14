package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
)

// FxDisplayRepository stores per-pair rate display preferences
type FxDisplayRepository struct {
	db *sql.DB
}

// NewFxDisplayRepository creates a new SQLite display preference repository
func NewFxDisplayRepository(db *DB) *FxDisplayRepository {
	return &FxDisplayRepository{db: db.conn}
}

var _ fxdisplay.Repository = (*FxDisplayRepository)(nil)

// GetPreference retrieves the preference of an ordered pair
func (r *FxDisplayRepository) GetPreference(ctx context.Context, from, to string) (*fxdisplay.Preference, error) {
	var (
		pref      fxdisplay.Preference
		mode      string
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT from_currency, to_currency, mode, updated_at
		FROM fx_display_preferences
		WHERE from_currency = ? AND to_currency = ?`,
		from, to,
	).Scan(&pref.From, &pref.To, &mode, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fxdisplay.ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get display preference: %w", err)
	}

	pref.Mode = fxdisplay.Mode(mode)
	if pref.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &pref, nil
}

// UpsertPreference inserts or replaces the preference of an ordered pair
func (r *FxDisplayRepository) UpsertPreference(ctx context.Context, pref *fxdisplay.Preference) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fx_display_preferences (from_currency, to_currency, mode, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (from_currency, to_currency) DO UPDATE SET mode = excluded.mode, updated_at = excluded.updated_at`,
		pref.From, pref.To, string(pref.Mode), formatTime(pref.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert display preference: %w", err)
	}
	return nil
}
