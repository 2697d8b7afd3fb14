package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// FxServiceInterface defines the display preference calls used by FxHandler
type FxServiceInterface interface {
	GetMode(ctx context.Context, from, to string) (fxdisplay.Mode, error)
	SetMode(ctx context.Context, from, to string, mode fxdisplay.Mode) (*fxdisplay.Preference, error)
	InternalRate(ctx context.Context, from, to string, display decimal.Decimal) (decimal.Decimal, error)
	Suggest(ctx context.Context, from, to string) (*fxdisplay.Suggestion, error)
}

// FxHandler serves per-pair rate display preferences
type FxHandler struct {
	fxService FxServiceInterface
}

// NewFxHandler creates a new fx display handler
func NewFxHandler(fxService FxServiceInterface) *FxHandler {
	return &FxHandler{fxService: fxService}
}

// PairResponse describes a pair's display mode and last remembered rate.
// The rate fields are omitted when the pair was never exchanged.
type PairResponse struct {
	From         string  `json:"from"`
	To           string  `json:"to"`
	Mode         string  `json:"mode"`
	InternalRate *string `json:"internal_rate,omitempty"`
	DisplayRate  *string `json:"display_rate,omitempty"`
	UpdatedAt    *string `json:"updated_at,omitempty"`
}

// SetModeRequest represents the display mode update request
type SetModeRequest struct {
	Mode string `json:"mode"`
}

// InternalRateRequest carries a rate typed in the pair's display form
type InternalRateRequest struct {
	DisplayRate string `json:"display_rate"`
}

// InternalRateResponse is the canonical rate for a displayed one
type InternalRateResponse struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Mode         string `json:"mode"`
	DisplayRate  string `json:"display_rate"`
	InternalRate string `json:"internal_rate"`
}

// GetPair handles GET /fx/{from}/{to}
func (h *FxHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	from, to := pairParams(r)

	suggestion, err := h.fxService.Suggest(r.Context(), from, to)
	if err == nil {
		updated := formatTime(suggestion.UpdatedAt)
		internal := suggestion.InternalRate.String()
		display := suggestion.DisplayRate.String()
		respondJSON(w, PairResponse{
			From:         suggestion.From,
			To:           suggestion.To,
			Mode:         string(suggestion.Mode),
			InternalRate: &internal,
			DisplayRate:  &display,
			UpdatedAt:    &updated,
		}, http.StatusOK)
		return
	}
	if !errors.Is(err, fxdisplay.ErrNoRememberedRate) {
		respondServiceError(w, err)
		return
	}

	mode, err := h.fxService.GetMode(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, PairResponse{From: from, To: to, Mode: string(mode)}, http.StatusOK)
}

// SetMode handles PUT /fx/{from}/{to}/mode
func (h *FxHandler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	from, to := pairParams(r)
	pref, err := h.fxService.SetMode(r.Context(), from, to, fxdisplay.Mode(req.Mode))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	updated := formatTime(pref.UpdatedAt)
	respondJSON(w, PairResponse{From: pref.From, To: pref.To, Mode: string(pref.Mode), UpdatedAt: &updated}, http.StatusOK)
}

// ToInternal handles POST /fx/{from}/{to}/internal
func (h *FxHandler) ToInternal(w http.ResponseWriter, r *http.Request) {
	var req InternalRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	display, err := money.Parse(req.DisplayRate)
	if err != nil {
		respondError(w, "invalid display_rate", http.StatusBadRequest)
		return
	}

	from, to := pairParams(r)
	mode, err := h.fxService.GetMode(r.Context(), from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	internal, err := h.fxService.InternalRate(r.Context(), from, to, display)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, InternalRateResponse{
		From:         from,
		To:           to,
		Mode:         string(mode),
		DisplayRate:  display.String(),
		InternalRate: internal.String(),
	}, http.StatusOK)
}

func pairParams(r *http.Request) (string, string) {
	return money.NormalizeCode(chi.URLParam(r, "from")), money.NormalizeCode(chi.URLParam(r, "to"))
}
