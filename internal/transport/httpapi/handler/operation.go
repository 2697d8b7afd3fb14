package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// OperationServiceInterface defines the ledger calls used by OperationHandler
type OperationServiceInterface interface {
	CreateOperation(ctx context.Context, draft ledger.Draft) (*ledger.Operation, error)
	GetOperations(ctx context.Context) ([]*ledger.Operation, error)
	GetOperation(ctx context.Context, id int64) (*ledger.Operation, error)
	DeleteOperation(ctx context.Context, id int64, reason *string) error
}

// OperationHandler handles operation-related HTTP requests
type OperationHandler struct {
	ledgerService OperationServiceInterface
}

// NewOperationHandler creates a new operation handler
func NewOperationHandler(ledgerService OperationServiceInterface) *OperationHandler {
	return &OperationHandler{ledgerService: ledgerService}
}

// CreateOperationRequest represents the operation creation request.
// Amounts and rates are decimal strings; a comma decimal separator and
// space digit grouping are accepted.
type CreateOperationRequest struct {
	Date            string  `json:"date"`
	Type            string  `json:"type"`
	SourceCurrency  string  `json:"source_currency"`
	SourceAmount    string  `json:"source_amount"`
	TargetCurrency  string  `json:"target_currency,omitempty"`
	Rate            *string `json:"rate,omitempty"`
	Commission      *string `json:"commission,omitempty"`
	ExpenseCategory *string `json:"expense_category,omitempty"`
	Comment         *string `json:"comment,omitempty"`
}

// DeleteOperationRequest carries the optional deletion reason
type DeleteOperationRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// OperationResponse represents an operation in API responses
type OperationResponse struct {
	ID              int64   `json:"id"`
	Date            string  `json:"date"`
	Type            string  `json:"type"`
	SourceCurrency  string  `json:"source_currency"`
	SourceAmount    string  `json:"source_amount"`
	TargetCurrency  string  `json:"target_currency"`
	TargetAmount    string  `json:"target_amount"`
	Rate            string  `json:"rate"`
	Commission      *string `json:"commission,omitempty"`
	USDEquivalent   string  `json:"usd_equivalent"`
	ExpenseCategory *string `json:"expense_category,omitempty"`
	Comment         *string `json:"comment,omitempty"`
}

// OperationsListResponse represents the response for listing operations
type OperationsListResponse struct {
	Operations []OperationResponse `json:"operations"`
}

// requestDateLayouts are the accepted forms of CreateOperationRequest.Date
var requestDateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

// CreateOperation handles POST /operations
func (h *OperationHandler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req CreateOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	draft, msg := req.toDraft()
	if msg != "" {
		respondError(w, msg, http.StatusBadRequest)
		return
	}

	op, err := h.ledgerService.CreateOperation(r.Context(), *draft)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, toOperationResponse(op), http.StatusCreated)
}

// GetOperations handles GET /operations
func (h *OperationHandler) GetOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.ledgerService.GetOperations(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := OperationsListResponse{Operations: make([]OperationResponse, 0, len(ops))}
	for _, op := range ops {
		resp.Operations = append(resp.Operations, toOperationResponse(op))
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetOperation handles GET /operations/{id}
func (h *OperationHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, "invalid operation ID", http.StatusBadRequest)
		return
	}

	op, err := h.ledgerService.GetOperation(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, toOperationResponse(op), http.StatusOK)
}

// DeleteOperation handles DELETE /operations/{id}
// The body is optional; an unknown id still answers 204.
func (h *OperationHandler) DeleteOperation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, "invalid operation ID", http.StatusBadRequest)
		return
	}

	var req DeleteOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.ledgerService.DeleteOperation(r.Context(), id, req.Reason); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toDraft parses the request; a non-empty message describes the first bad field.
func (req *CreateOperationRequest) toDraft() (*ledger.Draft, string) {
	date, ok := parseRequestDate(req.Date)
	if !ok {
		return nil, "date must be RFC 3339 or YYYY-MM-DD"
	}

	amount, err := money.Parse(req.SourceAmount)
	if err != nil {
		return nil, "invalid source_amount"
	}

	rate, err := parseOptionalAmount(req.Rate)
	if err != nil {
		return nil, "invalid rate"
	}

	commission, err := parseOptionalAmount(req.Commission)
	if err != nil {
		return nil, "invalid commission"
	}

	return &ledger.Draft{
		Date:            date,
		Kind:            ledger.OperationKind(req.Type),
		SourceCurrency:  req.SourceCurrency,
		SourceAmount:    amount,
		TargetCurrency:  req.TargetCurrency,
		Rate:            rate,
		Commission:      commission,
		ExpenseCategory: req.ExpenseCategory,
		Comment:         req.Comment,
	}, ""
}

func parseRequestDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range requestDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseOptionalAmount(raw *string) (*decimal.Decimal, error) {
	if raw == nil {
		return nil, nil
	}
	return money.ParseOptional(*raw)
}

func toOperationResponse(op *ledger.Operation) OperationResponse {
	resp := OperationResponse{
		ID:              op.ID,
		Date:            formatTime(op.Date),
		Type:            string(op.Kind),
		SourceCurrency:  op.SourceCurrency,
		SourceAmount:    op.SourceAmount.String(),
		TargetCurrency:  op.TargetCurrency,
		TargetAmount:    op.TargetAmount.String(),
		Rate:            op.Rate.String(),
		USDEquivalent:   op.USDEquivalent.String(),
		ExpenseCategory: op.ExpenseCategory,
		Comment:         op.Comment,
	}
	if op.Commission != nil {
		c := op.Commission.String()
		resp.Commission = &c
	}
	return resp
}
