package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// BalanceServiceInterface defines the projection reads used by BalanceHandler
type BalanceServiceInterface interface {
	GetBalances(ctx context.Context) ([]*ledger.Balance, error)
	GetRatesToUSD(ctx context.Context) ([]*ledger.RateToUSD, error)
	MaxExchangeAmount(ctx context.Context, code string) (decimal.Decimal, error)
}

// BalanceHandler serves balances and the USD rate cache
type BalanceHandler struct {
	ledgerService BalanceServiceInterface
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(ledgerService BalanceServiceInterface) *BalanceHandler {
	return &BalanceHandler{ledgerService: ledgerService}
}

// BalanceResponse represents one currency balance.
// USDValue is the amount at the cached rate, omitted when no rate is known.
type BalanceResponse struct {
	Currency  string  `json:"currency"`
	Amount    string  `json:"amount"`
	Formatted string  `json:"formatted"`
	USDValue  *string `json:"usd_value,omitempty"`
}

// BalancesResponse represents the response for listing balances
type BalancesResponse struct {
	Balances []BalanceResponse `json:"balances"`
	TotalUSD string            `json:"total_usd"`
}

// RateResponse represents one cached rate to USD
type RateResponse struct {
	Currency string `json:"currency"`
	Rate     string `json:"rate"`
}

// RatesResponse represents the response for listing rates
type RatesResponse struct {
	Rates []RateResponse `json:"rates"`
}

// MaxAmountResponse is the most an exchange can spend from a currency
type MaxAmountResponse struct {
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Formatted string `json:"formatted"`
}

// GetBalances handles GET /balances
func (h *BalanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledgerService.GetBalances(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	rates, err := h.ledgerService.GetRatesToUSD(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	rateOf := make(map[string]decimal.Decimal, len(rates))
	for _, rt := range rates {
		rateOf[rt.Currency] = rt.Rate
	}

	total := decimal.Zero
	resp := BalancesResponse{Balances: make([]BalanceResponse, 0, len(balances))}
	for _, b := range balances {
		item := BalanceResponse{
			Currency:  b.Currency,
			Amount:    b.Amount.String(),
			Formatted: money.Format(b.Amount, b.Currency),
		}
		if rate, ok := rateOf[b.Currency]; ok && rate.IsPositive() {
			usd := b.Amount.Mul(rate)
			total = total.Add(usd)
			s := usd.StringFixed(2)
			item.USDValue = &s
		}
		resp.Balances = append(resp.Balances, item)
	}
	resp.TotalUSD = total.StringFixed(2)

	respondJSON(w, resp, http.StatusOK)
}

// GetRates handles GET /rates
func (h *BalanceHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.ledgerService.GetRatesToUSD(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := RatesResponse{Rates: make([]RateResponse, 0, len(rates))}
	for _, rt := range rates {
		resp.Rates = append(resp.Rates, RateResponse{Currency: rt.Currency, Rate: rt.Rate.String()})
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetMaxExchangeAmount handles GET /balances/{code}/max
func (h *BalanceHandler) GetMaxExchangeAmount(w http.ResponseWriter, r *http.Request) {
	code := money.NormalizeCode(chi.URLParam(r, "code"))

	amount, err := h.ledgerService.MaxExchangeAmount(r.Context(), code)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, MaxAmountResponse{
		Currency:  code,
		Amount:    amount.String(),
		Formatted: money.Format(amount, code),
	}, http.StatusOK)
}
