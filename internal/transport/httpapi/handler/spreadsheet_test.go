package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/spreadsheet"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

func (m *MockLedgerService) ReplaceAllOperations(ctx context.Context, ops []ledger.Operation) error {
	args := m.Called(ctx, ops)
	return args.Error(0)
}

func exportedWorkbook(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, spreadsheet.Export(&buf, []*ledger.Operation{{
		ID: 1, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Kind: ledger.KindIncome,
		SourceCurrency: "USD", SourceAmount: decimal.NewFromInt(10),
		TargetCurrency: "USD", TargetAmount: decimal.NewFromInt(10),
		Rate: decimal.NewFromInt(1), USDEquivalent: decimal.NewFromInt(10),
	}}))
	return buf.Bytes()
}

func TestSpreadsheetHandler_Import(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("ReplaceAllOperations", mock.Anything, mock.MatchedBy(func(ops []ledger.Operation) bool {
		return len(ops) == 1 && ops[0].SourceAmount.Equal(decimal.NewFromInt(10))
	})).Return(nil)
	h := NewSpreadsheetHandler(svc, logger.Discard())

	rec := serve(h.Import, http.MethodPost, "/import", "/import", bytes.NewReader(exportedWorkbook(t)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"imported":1}`, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestSpreadsheetHandler_Import_TooLarge(t *testing.T) {
	svc := new(MockLedgerService)
	h := NewSpreadsheetHandler(svc, logger.Discard())
	h.maxBytes = 64

	rec := serve(h.Import, http.MethodPost, "/import", "/import", bytes.NewReader(exportedWorkbook(t)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds 64 bytes")
	svc.AssertNotCalled(t, "ReplaceAllOperations", mock.Anything, mock.Anything)
}

func TestSpreadsheetHandler_Import_NotAWorkbook(t *testing.T) {
	svc := new(MockLedgerService)
	h := NewSpreadsheetHandler(svc, logger.Discard())

	rec := serve(h.Import, http.MethodPost, "/import", "/import", bytes.NewReader([]byte("plain text")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "ReplaceAllOperations", mock.Anything, mock.Anything)
}
