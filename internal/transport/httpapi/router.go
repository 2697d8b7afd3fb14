package httpapi

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ledenev737/BuhWise/internal/transport/httpapi/handler"
	"github.com/ledenev737/BuhWise/internal/transport/httpapi/middleware"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	RateLimitRPS       float64
	RateLimitBurst     int
	HealthHandler      *handler.HealthHandler
	OperationHandler   *handler.OperationHandler
	ChangeHandler      *handler.ChangeHandler
	BalanceHandler     *handler.BalanceHandler
	CurrencyHandler    *handler.CurrencyHandler
	FxHandler          *handler.FxHandler
	SpreadsheetHandler *handler.SpreadsheetHandler
	MaintenanceHandler *handler.MaintenanceHandler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}

	// Health check endpoints
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health", cfg.HealthHandler.GetHealth)
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.OperationHandler != nil {
			r.Route("/operations", func(r chi.Router) {
				r.Post("/", cfg.OperationHandler.CreateOperation)
				r.Get("/", cfg.OperationHandler.GetOperations)
				r.Get("/{id}", cfg.OperationHandler.GetOperation)
				r.Delete("/{id}", cfg.OperationHandler.DeleteOperation)
			})
		}

		if cfg.ChangeHandler != nil {
			r.Get("/changes", cfg.ChangeHandler.GetChanges)
			r.Post("/changes/{id}/restore", cfg.ChangeHandler.RestoreChange)
		}

		if cfg.BalanceHandler != nil {
			r.Get("/balances", cfg.BalanceHandler.GetBalances)
			r.Get("/balances/{code}/max", cfg.BalanceHandler.GetMaxExchangeAmount)
			r.Get("/rates", cfg.BalanceHandler.GetRates)
		}

		if cfg.CurrencyHandler != nil {
			r.Route("/currencies", func(r chi.Router) {
				r.Get("/", cfg.CurrencyHandler.GetCurrencies)
				r.Post("/", cfg.CurrencyHandler.CreateCurrency)
				r.Put("/{code}", cfg.CurrencyHandler.UpdateCurrency)
			})
		}

		if cfg.FxHandler != nil {
			r.Route("/fx/{from}/{to}", func(r chi.Router) {
				r.Get("/", cfg.FxHandler.GetPair)
				r.Put("/mode", cfg.FxHandler.SetMode)
				r.Post("/internal", cfg.FxHandler.ToInternal)
			})
		}

		if cfg.SpreadsheetHandler != nil {
			r.Get("/export", cfg.SpreadsheetHandler.Export)
			r.Post("/import", cfg.SpreadsheetHandler.Import)
		}

		if cfg.MaintenanceHandler != nil {
			r.Post("/maintenance/rebuild", cfg.MaintenanceHandler.Rebuild)
			r.Get("/maintenance/reconcile", cfg.MaintenanceHandler.Reconcile)
		}
	})

	return r
}
