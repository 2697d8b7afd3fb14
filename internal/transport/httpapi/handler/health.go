package handler

import (
	"context"
	"net/http"
	"time"
)

// DatabasePinger defines the interface for checking store connectivity
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db      DatabasePinger
	driver  string
	version string
	started time.Time
}

// NewHealthHandler creates a new health handler for the given store driver
func NewHealthHandler(db DatabasePinger, driver, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		driver:  driver,
		version: version,
		started: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Uptime  string            `json:"uptime,omitempty"`
}

// GetHealth handles GET /health
// Includes store connectivity; a failing store reports 503 "degraded".
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"api": "healthy"}
	status := "ok"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		checks[h.driver] = "unhealthy: " + err.Error()
		status = "degraded"
	} else {
		checks[h.driver] = "healthy"
	}

	httpStatus := http.StatusOK
	if status == "degraded" {
		httpStatus = http.StatusServiceUnavailable
	}

	respondJSON(w, HealthResponse{
		Status:  status,
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Checks:  checks,
	}, httpStatus)
}

// GetReadiness handles GET /health/ready
func (h *HealthHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, "store not ready", http.StatusServiceUnavailable)
		return
	}

	respondJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// GetLiveness handles GET /health/live
func GetLiveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "alive"}, http.StatusOK)
}
