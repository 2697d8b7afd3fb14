package handler

import (
	"context"
	"net/http"

	"github.com/ledenev737/BuhWise/internal/ledger"
)

// MaintenanceServiceInterface defines the projection maintenance calls
type MaintenanceServiceInterface interface {
	RebuildProjections(ctx context.Context) error
	ReconcileBalances(ctx context.Context) ([]ledger.BalanceMismatch, error)
}

// MaintenanceHandler exposes projection rebuild and reconciliation
type MaintenanceHandler struct {
	ledgerService MaintenanceServiceInterface
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(ledgerService MaintenanceServiceInterface) *MaintenanceHandler {
	return &MaintenanceHandler{ledgerService: ledgerService}
}

// MismatchResponse is a stored balance that disagrees with the log
type MismatchResponse struct {
	Currency string `json:"currency"`
	Stored   string `json:"stored"`
	Computed string `json:"computed"`
}

// ReconcileResponse represents the reconciliation report
type ReconcileResponse struct {
	Consistent bool               `json:"consistent"`
	Mismatches []MismatchResponse `json:"mismatches"`
}

// Rebuild handles POST /maintenance/rebuild
func (h *MaintenanceHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	if err := h.ledgerService.RebuildProjections(r.Context()); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "rebuilt"}, http.StatusOK)
}

// Reconcile handles GET /maintenance/reconcile
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	mismatches, err := h.ledgerService.ReconcileBalances(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := ReconcileResponse{
		Consistent: len(mismatches) == 0,
		Mismatches: make([]MismatchResponse, 0, len(mismatches)),
	}
	for _, m := range mismatches {
		resp.Mismatches = append(resp.Mismatches, MismatchResponse{
			Currency: m.Currency,
			Stored:   m.Stored.String(),
			Computed: m.Computed.String(),
		})
	}
	respondJSON(w, resp, http.StatusOK)
}
