package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ledenev737/BuhWise/internal/ledger"
)

// ChangeServiceInterface defines the change-log calls used by ChangeHandler
type ChangeServiceInterface interface {
	GetOperationChanges(ctx context.Context, operationID *int64) ([]*ledger.Change, error)
	RestoreOperation(ctx context.Context, changeID int64) (*ledger.Operation, error)
}

// ChangeHandler serves the change history
type ChangeHandler struct {
	ledgerService ChangeServiceInterface
}

// NewChangeHandler creates a new change handler
func NewChangeHandler(ledgerService ChangeServiceInterface) *ChangeHandler {
	return &ChangeHandler{ledgerService: ledgerService}
}

// ChangeResponse represents a change-log entry. Operation is the decoded
// snapshot and is omitted when the snapshot cannot be read.
type ChangeResponse struct {
	ID          int64              `json:"id"`
	OperationID *int64             `json:"operation_id,omitempty"`
	Action      string             `json:"action"`
	Timestamp   string             `json:"timestamp"`
	Reason      *string            `json:"reason,omitempty"`
	Snapshot    string             `json:"snapshot"`
	Operation   *OperationResponse `json:"operation,omitempty"`
}

// ChangesListResponse represents the response for listing changes
type ChangesListResponse struct {
	Changes []ChangeResponse `json:"changes"`
}

// GetChanges handles GET /changes?operation_id=
func (h *ChangeHandler) GetChanges(w http.ResponseWriter, r *http.Request) {
	var operationID *int64
	if raw := r.URL.Query().Get("operation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, "invalid operation_id", http.StatusBadRequest)
			return
		}
		operationID = &id
	}

	changes, err := h.ledgerService.GetOperationChanges(r.Context(), operationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := ChangesListResponse{Changes: make([]ChangeResponse, 0, len(changes))}
	for _, c := range changes {
		resp.Changes = append(resp.Changes, toChangeResponse(c))
	}
	respondJSON(w, resp, http.StatusOK)
}

// RestoreChange handles POST /changes/{id}/restore
func (h *ChangeHandler) RestoreChange(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		respondError(w, "invalid change ID", http.StatusBadRequest)
		return
	}

	op, err := h.ledgerService.RestoreOperation(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, toOperationResponse(op), http.StatusCreated)
}

func toChangeResponse(c *ledger.Change) ChangeResponse {
	resp := ChangeResponse{
		ID:          c.ID,
		OperationID: c.OperationID,
		Action:      string(c.Action),
		Timestamp:   formatTime(c.Timestamp),
		Reason:      c.Reason,
		Snapshot:    c.Snapshot,
	}
	if op, err := ledger.DecodeSnapshot(c.Snapshot); err == nil {
		opResp := toOperationResponse(op)
		resp.Operation = &opResp
	}
	return resp
}
