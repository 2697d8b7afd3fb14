package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	apperrors "github.com/ledenev737/BuhWise/internal/shared/errors"
	"github.com/ledenev737/BuhWise/internal/spreadsheet"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, ErrorResponse{Error: message}, statusCode)
}

// statusByCode maps AppError codes to HTTP statuses
var statusByCode = map[string]int{
	apperrors.ErrCodeValidation:          http.StatusBadRequest,
	apperrors.ErrCodeBadRequest:          http.StatusBadRequest,
	apperrors.ErrCodeNotFound:            http.StatusNotFound,
	apperrors.ErrCodeInsufficientBalance: http.StatusUnprocessableEntity,
	apperrors.ErrCodeRestoreFailed:       http.StatusConflict,
	apperrors.ErrCodeDatabaseError:       http.StatusInternalServerError,
}

// respondServiceError translates a service error into an HTTP error response.
// Unrecognised errors are reported as 500 without their details.
func respondServiceError(w http.ResponseWriter, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		status, ok := statusByCode[appErr.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		respondJSON(w, ErrorResponse{Error: appErr.Message, Code: appErr.Code}, status)
		return
	}

	switch {
	case errors.Is(err, fxdisplay.ErrInvalidPair),
		errors.Is(err, fxdisplay.ErrInvalidMode),
		errors.Is(err, fxdisplay.ErrInvalidRate):
		respondJSON(w, ErrorResponse{Error: err.Error(), Code: apperrors.ErrCodeValidation}, http.StatusBadRequest)
	case errors.Is(err, fxdisplay.ErrNoRememberedRate):
		respondJSON(w, ErrorResponse{Error: err.Error(), Code: apperrors.ErrCodeNotFound}, http.StatusNotFound)
	case errors.Is(err, spreadsheet.ErrUnreadableWorkbook),
		errors.Is(err, spreadsheet.ErrEmptyWorkbook),
		errors.Is(err, spreadsheet.ErrMissingColumn),
		errors.Is(err, spreadsheet.ErrNoOperations),
		errors.Is(err, spreadsheet.ErrInvalidCell),
		errors.Is(err, spreadsheet.ErrUnknownOperationType),
		errors.Is(err, spreadsheet.ErrUSDEquivalentUnknown),
		errors.Is(err, spreadsheet.ErrEmptyCurrency):
		respondJSON(w, ErrorResponse{Error: err.Error(), Code: apperrors.ErrCodeValidation}, http.StatusBadRequest)
	default:
		respondJSON(w, ErrorResponse{Error: "internal server error", Code: apperrors.ErrCodeInternal}, http.StatusInternalServerError)
	}
}

// parseIDParam reads a positive integer path parameter
func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// formatTime renders timestamps in responses
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
