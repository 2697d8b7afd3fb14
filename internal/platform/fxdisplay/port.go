package fxdisplay

import (
	"context"

	"github.com/ledenev737/BuhWise/internal/ledger"
)

// Repository defines the interface for display preference storage
type Repository interface {
	// GetPreference returns ErrPreferenceNotFound when the pair has no stored mode
	GetPreference(ctx context.Context, from, to string) (*Preference, error)

	// UpsertPreference stores the mode of a pair, replacing any previous one
	UpsertPreference(ctx context.Context, pref *Preference) error
}

// PairRateReader reads the ledger's pair memory
type PairRateReader interface {
	GetLastPairRate(ctx context.Context, from, to string) (*ledger.PairRate, error)
}
