package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledenev737/BuhWise/internal/ledger"
)

// CurrencyServiceInterface defines the registry calls used by CurrencyHandler
type CurrencyServiceInterface interface {
	ListCurrencies(ctx context.Context, activeOnly bool) ([]*ledger.Currency, error)
	AddCurrency(ctx context.Context, code, name string, active bool) (*ledger.Currency, error)
	UpdateCurrency(ctx context.Context, code, name string, active bool) (*ledger.Currency, error)
}

// CurrencyHandler handles currency registry requests
type CurrencyHandler struct {
	ledgerService CurrencyServiceInterface
}

// NewCurrencyHandler creates a new currency handler
func NewCurrencyHandler(ledgerService CurrencyServiceInterface) *CurrencyHandler {
	return &CurrencyHandler{ledgerService: ledgerService}
}

// CreateCurrencyRequest represents the currency creation request.
// IsActive defaults to true.
type CreateCurrencyRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// UpdateCurrencyRequest represents the currency update request
type UpdateCurrencyRequest struct {
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// CurrencyResponse represents a registered currency
type CurrencyResponse struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// CurrenciesListResponse represents the response for listing currencies
type CurrenciesListResponse struct {
	Currencies []CurrencyResponse `json:"currencies"`
}

// GetCurrencies handles GET /currencies?active=
func (h *CurrencyHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, "active must be true or false", http.StatusBadRequest)
			return
		}
		activeOnly = v
	}

	currencies, err := h.ledgerService.ListCurrencies(r.Context(), activeOnly)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := CurrenciesListResponse{Currencies: make([]CurrencyResponse, 0, len(currencies))}
	for _, c := range currencies {
		resp.Currencies = append(resp.Currencies, toCurrencyResponse(c))
	}
	respondJSON(w, resp, http.StatusOK)
}

// CreateCurrency handles POST /currencies
func (h *CurrencyHandler) CreateCurrency(w http.ResponseWriter, r *http.Request) {
	var req CreateCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	currency, err := h.ledgerService.AddCurrency(r.Context(), req.Code, req.Name, active)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, toCurrencyResponse(currency), http.StatusCreated)
}

// UpdateCurrency handles PUT /currencies/{code}
func (h *CurrencyHandler) UpdateCurrency(w http.ResponseWriter, r *http.Request) {
	var req UpdateCurrencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	currency, err := h.ledgerService.UpdateCurrency(r.Context(), chi.URLParam(r, "code"), req.Name, req.IsActive)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, toCurrencyResponse(currency), http.StatusOK)
}

func toCurrencyResponse(c *ledger.Currency) CurrencyResponse {
	return CurrencyResponse{Code: c.Code, Name: c.Name, IsActive: c.IsActive}
}
