package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledenev737/BuhWise/internal/infra/store"
	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	"github.com/ledenev737/BuhWise/internal/transport/httpapi"
	"github.com/ledenev737/BuhWise/internal/transport/httpapi/handler"
	"github.com/ledenev737/BuhWise/pkg/config"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a buhwise.yaml config file.")
	flag.Parse()

	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Options{Env: cfg.Env, Format: cfg.LogFormat})
	log.Info("Starting BuhWise API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"version", version,
	)

	// Open the configured store
	s, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer s.Close()

	// Initialize services
	ledgerSvc := ledger.NewService(s.Ledger, log,
		ledger.WithRebuildOnDelete(cfg.RebuildOnDelete))
	if err := ledgerSvc.Bootstrap(ctx); err != nil {
		log.Error("Failed to register default currencies", "error", err)
		os.Exit(1)
	}
	fxSvc := fxdisplay.NewService(s.FxDisplay, ledgerSvc)

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		HealthHandler:      handler.NewHealthHandler(s.Pinger, s.Driver, version),
		OperationHandler:   handler.NewOperationHandler(ledgerSvc),
		ChangeHandler:      handler.NewChangeHandler(ledgerSvc),
		BalanceHandler:     handler.NewBalanceHandler(ledgerSvc),
		CurrencyHandler:    handler.NewCurrencyHandler(ledgerSvc),
		FxHandler:          handler.NewFxHandler(fxSvc),
		SpreadsheetHandler: handler.NewSpreadsheetHandler(ledgerSvc, log.WithField("component", "spreadsheet")),
		MaintenanceHandler: handler.NewMaintenanceHandler(ledgerSvc),
	})

	// The API serves a single local user
	srv := &http.Server{
		Addr:         "127.0.0.1:" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for termination signal
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-serverErr:
		log.Error("Server failed", "error", err)
		s.Close()
		os.Exit(1)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
