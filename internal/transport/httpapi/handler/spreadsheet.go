package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/spreadsheet"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// maxImportSize bounds uploaded workbooks
const maxImportSize = 10 << 20

// xlsxContentType is the media type of exported workbooks
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SpreadsheetServiceInterface defines the ledger calls used for XLSX exchange
type SpreadsheetServiceInterface interface {
	GetOperations(ctx context.Context) ([]*ledger.Operation, error)
	ReplaceAllOperations(ctx context.Context, ops []ledger.Operation) error
}

// SpreadsheetHandler exports and imports the operation log as XLSX
type SpreadsheetHandler struct {
	ledgerService SpreadsheetServiceInterface
	log           *logger.Logger
	now           func() time.Time
	maxBytes      int64
}

// NewSpreadsheetHandler creates a new spreadsheet handler
func NewSpreadsheetHandler(ledgerService SpreadsheetServiceInterface, log *logger.Logger) *SpreadsheetHandler {
	return &SpreadsheetHandler{
		ledgerService: ledgerService,
		log:           log.WithField("component", "spreadsheet"),
		now:           time.Now,
		maxBytes:      maxImportSize,
	}
}

// ImportResponse reports a completed bulk replace
type ImportResponse struct {
	Imported int `json:"imported"`
}

// Export handles GET /export
func (h *SpreadsheetHandler) Export(w http.ResponseWriter, r *http.Request) {
	ops, err := h.ledgerService.GetOperations(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Render fully before writing headers so a failure can still be reported
	var buf bytes.Buffer
	if err := spreadsheet.Export(&buf, ops); err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("failed to export operations")
		respondError(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("buhwise-%s.xlsx", h.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Import handles POST /import
// The workbook is the raw request body or the "file" part of a multipart
// form. Every existing operation is replaced.
func (h *SpreadsheetHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, fmt.Sprintf("workbook exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(data))

	body, err := importBody(r, h.maxBytes)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer body.Close()

	ops, err := spreadsheet.Import(body)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := h.ledgerService.ReplaceAllOperations(r.Context(), ops); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, ImportResponse{Imported: len(ops)}, http.StatusOK)
}

func importBody(r *http.Request, maxBytes int64) (io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form")
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("form field \"file\" is required")
	}
	return file, nil
}
