package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledenev737/BuhWise/pkg/config"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		StoreDriver:  config.DriverSQLite,
		DatabasePath: filepath.Join(t.TempDir(), "data", "buhwise.db"),
	}

	s, err := Open(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.DriverSQLite, s.Driver)
	require.NoError(t, s.Pinger.Ping(ctx))
	require.NoError(t, s.Ledger.EnsureCurrency(ctx, "USD"))
	assert.FileExists(t, cfg.DatabasePath)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "mysql"}, logger.Discard())
	assert.ErrorContains(t, err, "unknown store driver")
}
