// Package store opens the configured persistence backend.
package store

import (
	"context"
	"fmt"

	"github.com/ledenev737/BuhWise/internal/infra/postgres"
	"github.com/ledenev737/BuhWise/internal/infra/sqlite"
	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	"github.com/ledenev737/BuhWise/pkg/config"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// Pinger checks backend connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store bundles the repositories of one backend
type Store struct {
	Driver    string
	Ledger    ledger.Repository
	FxDisplay fxdisplay.Repository
	Pinger    Pinger
	close     func()
}

// Open connects to the backend named by cfg.StoreDriver and brings its schema up to date.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		log.Info("SQLite store opened", "path", cfg.DatabasePath)
		return &Store{
			Driver:    config.DriverSQLite,
			Ledger:    sqlite.NewLedgerRepository(db),
			FxDisplay: sqlite.NewFxDisplayRepository(db),
			Pinger:    db,
			close:     func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("PostgreSQL store opened")
		return &Store{
			Driver:    config.DriverPostgres,
			Ledger:    postgres.NewLedgerRepository(db.Pool),
			FxDisplay: postgres.NewFxDisplayRepository(db.Pool),
			Pinger:    db,
			close:     db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Close releases the backend connections
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}
