package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledenev737/BuhWise/internal/infra/sqlite"
	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	"github.com/ledenev737/BuhWise/internal/transport/httpapi/handler"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// setupTestRouter wires the full stack on an in-memory SQLite store
func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.Discard()
	ledgerSvc := ledger.NewService(sqlite.NewLedgerRepository(db), log)
	require.NoError(t, ledgerSvc.Bootstrap(ctx))
	fxSvc := fxdisplay.NewService(sqlite.NewFxDisplayRepository(db), ledgerSvc)

	return NewRouter(Config{
		Logger:             log,
		AllowedOrigins:     []string{"http://localhost:5173"},
		HealthHandler:      handler.NewHealthHandler(db, "sqlite", "test"),
		OperationHandler:   handler.NewOperationHandler(ledgerSvc),
		ChangeHandler:      handler.NewChangeHandler(ledgerSvc),
		BalanceHandler:     handler.NewBalanceHandler(ledgerSvc),
		CurrencyHandler:    handler.NewCurrencyHandler(ledgerSvc),
		FxHandler:          handler.NewFxHandler(fxSvc),
		SpreadsheetHandler: handler.NewSpreadsheetHandler(ledgerSvc, log),
		MaintenanceHandler: handler.NewMaintenanceHandler(ledgerSvc),
	})
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func balanceOf(t *testing.T, r http.Handler, code string) string {
	t.Helper()
	rec := do(t, r, http.MethodGet, "/api/v1/balances", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.BalancesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	for _, b := range resp.Balances {
		if b.Currency == code {
			return b.Amount
		}
	}
	return ""
}

func TestRouter_OperationLifecycle(t *testing.T) {
	r := setupTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-01","type":"Income","source_currency":"EUR","source_amount":"200","rate":"1.1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-02","type":"Exchange","source_currency":"EUR","source_amount":"100","target_currency":"USD","rate":"1.1","commission":"2"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var exchange handler.OperationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&exchange))
	assert.Equal(t, "108", exchange.TargetAmount)
	assert.Equal(t, "1.08", exchange.Rate)
	assert.Equal(t, "108", balanceOf(t, r, "USD"))

	// overspending is rejected and changes nothing
	rec = do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-03","type":"Expense","source_currency":"USD","source_amount":"500","expense_category":"Car"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "108", balanceOf(t, r, "USD"))

	rec = do(t, r, http.MethodDelete, fmt.Sprintf("/api/v1/operations/%d", exchange.ID), `{"reason":"wrong rate"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", balanceOf(t, r, "USD"))
	assert.Equal(t, "200", balanceOf(t, r, "EUR"))

	rec = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/operations/%d", exchange.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodGet, fmt.Sprintf("/api/v1/changes?operation_id=%d", exchange.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var changes handler.ChangesListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&changes))
	require.NotEmpty(t, changes.Changes)
	deleteChange := changes.Changes[0]
	require.Equal(t, "Delete", deleteChange.Action)
	require.NotNil(t, deleteChange.Reason)
	assert.Equal(t, "wrong rate", *deleteChange.Reason)

	rec = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/changes/%d/restore", deleteChange.ID), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "108", balanceOf(t, r, "USD"))

	// restoring a Create change conflicts
	createChange := changes.Changes[len(changes.Changes)-1]
	require.Equal(t, "Create", createChange.Action)
	rec = do(t, r, http.MethodPost, fmt.Sprintf("/api/v1/changes/%d/restore", createChange.ID), "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/v1/maintenance/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"consistent":true,"mismatches":[]}`, rec.Body.String())
}

func TestRouter_FxDisplay(t *testing.T) {
	r := setupTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-01","type":"Income","source_currency":"USD","source_amount":"100"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-02","type":"Exchange","source_currency":"USD","source_amount":"10","target_currency":"RUB","rate":"80"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/v1/fx/RUB/USD/mode", `{"mode":"Inverted"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/fx/rub/usd/internal", `{"display_rate":"80"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var internal handler.InternalRateResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&internal))
	assert.Equal(t, "0.0125", internal.InternalRate)

	rec = do(t, r, http.MethodGet, "/api/v1/fx/USD/RUB", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pair handler.PairResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pair))
	assert.Equal(t, "Direct", pair.Mode)
	require.NotNil(t, pair.InternalRate)
	assert.Equal(t, "80", *pair.InternalRate)

	rec = do(t, r, http.MethodGet, "/api/v1/fx/RUB/USD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"from":"RUB","to":"USD","mode":"Inverted"}`, rec.Body.String())
}

func TestRouter_ExportImport(t *testing.T) {
	r := setupTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-01","type":"Income","source_currency":"EUR","source_amount":"200","rate":"1.1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, r, http.MethodPost, "/api/v1/operations",
		`{"date":"2024-01-02","type":"Expense","source_currency":"EUR","source_amount":"50","expense_category":"Rent"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/v1/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	workbook := rec.Body.Bytes()
	require.NotEmpty(t, workbook)

	// drift away from the exported state, then load the export back
	rec = do(t, r, http.MethodDelete, "/api/v1/operations/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "ledger.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported":2}`, rec.Body.String())

	assert.Equal(t, "150", balanceOf(t, r, "EUR"))

	// import replaces the history too
	rec = do(t, r, http.MethodGet, "/api/v1/changes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"changes":[]}`, rec.Body.String())
}

func TestRouter_ImportRejectsGarbage(t *testing.T) {
	r := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader("not a workbook"))
	req.Header.Set("Content-Type", "application/octet-stream")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CurrenciesAndHealth(t *testing.T) {
	r := setupTestRouter(t)

	rec := do(t, r, http.MethodPost, "/api/v1/currencies", `{"code":"gel","name":"Georgian lari"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, r, http.MethodPut, "/api/v1/currencies/GEL", `{"name":"Lari","is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/v1/currencies?active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "GEL")

	rec = do(t, r, http.MethodGet, "/api/v1/currencies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Lari"`)

	rec = do(t, r, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
