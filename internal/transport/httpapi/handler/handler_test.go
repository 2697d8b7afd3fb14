package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/internal/platform/fxdisplay"
	apperrors "github.com/ledenev737/BuhWise/internal/shared/errors"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// MockLedgerService is a mock implementation of every ledger-facing handler interface
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) CreateOperation(ctx context.Context, draft ledger.Draft) (*ledger.Operation, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Operation), args.Error(1)
}

func (m *MockLedgerService) GetOperations(ctx context.Context) ([]*ledger.Operation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Operation), args.Error(1)
}

func (m *MockLedgerService) GetOperation(ctx context.Context, id int64) (*ledger.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Operation), args.Error(1)
}

func (m *MockLedgerService) DeleteOperation(ctx context.Context, id int64, reason *string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockLedgerService) GetOperationChanges(ctx context.Context, operationID *int64) ([]*ledger.Change, error) {
	args := m.Called(ctx, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Change), args.Error(1)
}

func (m *MockLedgerService) RestoreOperation(ctx context.Context, changeID int64) (*ledger.Operation, error) {
	args := m.Called(ctx, changeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Operation), args.Error(1)
}

func (m *MockLedgerService) GetBalances(ctx context.Context) ([]*ledger.Balance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Balance), args.Error(1)
}

func (m *MockLedgerService) GetRatesToUSD(ctx context.Context) ([]*ledger.RateToUSD, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.RateToUSD), args.Error(1)
}

func (m *MockLedgerService) MaxExchangeAmount(ctx context.Context, code string) (decimal.Decimal, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerService) ListCurrencies(ctx context.Context, activeOnly bool) ([]*ledger.Currency, error) {
	args := m.Called(ctx, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Currency), args.Error(1)
}

func (m *MockLedgerService) AddCurrency(ctx context.Context, code, name string, active bool) (*ledger.Currency, error) {
	args := m.Called(ctx, code, name, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Currency), args.Error(1)
}

func (m *MockLedgerService) UpdateCurrency(ctx context.Context, code, name string, active bool) (*ledger.Currency, error) {
	args := m.Called(ctx, code, name, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Currency), args.Error(1)
}

func (m *MockLedgerService) RebuildProjections(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLedgerService) ReconcileBalances(ctx context.Context) ([]ledger.BalanceMismatch, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.BalanceMismatch), args.Error(1)
}

// MockFxService is a mock implementation of FxServiceInterface
type MockFxService struct {
	mock.Mock
}

func (m *MockFxService) GetMode(ctx context.Context, from, to string) (fxdisplay.Mode, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(fxdisplay.Mode), args.Error(1)
}

func (m *MockFxService) SetMode(ctx context.Context, from, to string, mode fxdisplay.Mode) (*fxdisplay.Preference, error) {
	args := m.Called(ctx, from, to, mode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fxdisplay.Preference), args.Error(1)
}

func (m *MockFxService) InternalRate(ctx context.Context, from, to string, display decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, from, to, display)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockFxService) Suggest(ctx context.Context, from, to string) (*fxdisplay.Suggestion, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fxdisplay.Suggestion), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// serve routes a single request through a chi router so URL params resolve
func serve(h http.HandlerFunc, method, pattern, target string, body io.Reader) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func sampleExchange() *ledger.Operation {
	fee := decimal.RequireFromString("2")
	return &ledger.Operation{
		ID:             7,
		Date:           time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Kind:           ledger.KindExchange,
		SourceCurrency: "EUR",
		SourceAmount:   decimal.NewFromInt(100),
		TargetCurrency: "USD",
		TargetAmount:   decimal.NewFromInt(108),
		Rate:           decimal.RequireFromString("1.08"),
		Commission:     &fee,
		USDEquivalent:  decimal.NewFromInt(108),
	}
}

func TestOperationHandler_CreateOperation(t *testing.T) {
	svc := new(MockLedgerService)
	h := NewOperationHandler(svc)

	svc.On("CreateOperation", mock.Anything, mock.MatchedBy(func(d ledger.Draft) bool {
		return d.Kind == ledger.KindExchange &&
			d.SourceCurrency == "eur" &&
			d.SourceAmount.Equal(decimal.NewFromInt(100)) &&
			d.Rate != nil && d.Rate.Equal(decimal.RequireFromString("1.1")) &&
			d.Commission != nil && d.Commission.Equal(decimal.NewFromInt(2)) &&
			d.Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	})).Return(sampleExchange(), nil)

	body := `{"date":"2024-03-01","type":"Exchange","source_currency":"eur","source_amount":"100","target_currency":"USD","rate":"1,1","commission":"2"}`
	rec := serve(h.CreateOperation, http.MethodPost, "/operations", "/operations", strings.NewReader(body))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp OperationResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(7), resp.ID)
	assert.Equal(t, "108", resp.TargetAmount)
	assert.Equal(t, "1.08", resp.Rate)
	require.NotNil(t, resp.Commission)
	assert.Equal(t, "2", *resp.Commission)
	assert.Equal(t, "2024-03-01T00:00:00Z", resp.Date)
	svc.AssertExpectations(t)
}

func TestOperationHandler_CreateOperation_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"date":`, want: "invalid request body"},
		{name: "bad date", body: `{"date":"01/03/2024","type":"Income","source_currency":"USD","source_amount":"1"}`, want: "date must be RFC 3339 or YYYY-MM-DD"},
		{name: "bad amount", body: `{"date":"2024-03-01","type":"Income","source_currency":"USD","source_amount":"ten"}`, want: "invalid source_amount"},
		{name: "bad rate", body: `{"date":"2024-03-01","type":"Income","source_currency":"USD","source_amount":"1","rate":"x"}`, want: "invalid rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLedgerService)
			rec := serve(NewOperationHandler(svc).CreateOperation, http.MethodPost, "/operations", "/operations", strings.NewReader(tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Error)
			svc.AssertNotCalled(t, "CreateOperation", mock.Anything, mock.Anything)
		})
	}
}

func TestOperationHandler_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		contains string
	}{
		{
			name:   "validation",
			err:    apperrors.Validation(ledger.ErrInvalidAmount, ledger.ErrInvalidAmount.Error()),
			status: http.StatusBadRequest,
			code:   apperrors.ErrCodeValidation,
		},
		{
			name:   "insufficient funds",
			err:    apperrors.InsufficientBalance(ledger.ErrInsufficientFunds, "insufficient USD"),
			status: http.StatusUnprocessableEntity,
			code:   apperrors.ErrCodeInsufficientBalance,
		},
		{
			name:   "database",
			err:    apperrors.DatabaseError("failed to insert operation", errors.New("disk full")),
			status: http.StatusInternalServerError,
			code:   apperrors.ErrCodeDatabaseError,
		},
		{
			name:     "unknown error hides details",
			err:      errors.New("secret detail"),
			status:   http.StatusInternalServerError,
			code:     apperrors.ErrCodeInternal,
			contains: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockLedgerService)
			svc.On("CreateOperation", mock.Anything, mock.Anything).Return(nil, tt.err)

			body := `{"date":"2024-03-01","type":"Expense","source_currency":"USD","source_amount":"5"}`
			rec := serve(NewOperationHandler(svc).CreateOperation, http.MethodPost, "/operations", "/operations", strings.NewReader(body))

			assert.Equal(t, tt.status, rec.Code)
			var resp ErrorResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, tt.code, resp.Code)
			if tt.contains != "" {
				assert.Equal(t, tt.contains, resp.Error)
			}
			assert.NotContains(t, resp.Error, "secret")
		})
	}
}

func TestOperationHandler_GetOperation(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("GetOperation", mock.Anything, int64(7)).Return(sampleExchange(), nil)

		rec := serve(NewOperationHandler(svc).GetOperation, http.MethodGet, "/operations/{id}", "/operations/7", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp OperationResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "Exchange", resp.Type)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("GetOperation", mock.Anything, int64(99)).Return(nil, apperrors.NotFound(ledger.ErrOperationNotFound, "operation"))

		rec := serve(NewOperationHandler(svc).GetOperation, http.MethodGet, "/operations/{id}", "/operations/99", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := new(MockLedgerService)
		rec := serve(NewOperationHandler(svc).GetOperation, http.MethodGet, "/operations/{id}", "/operations/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "GetOperation", mock.Anything, mock.Anything)
	})
}

func TestOperationHandler_GetOperations_Empty(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("GetOperations", mock.Anything).Return([]*ledger.Operation{}, nil)

	rec := serve(NewOperationHandler(svc).GetOperations, http.MethodGet, "/operations", "/operations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"operations":[]}`, rec.Body.String())
}

func TestOperationHandler_DeleteOperation(t *testing.T) {
	t.Run("with reason", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("DeleteOperation", mock.Anything, int64(3), mock.MatchedBy(func(r *string) bool {
			return r != nil && *r == "duplicate"
		})).Return(nil)

		rec := serve(NewOperationHandler(svc).DeleteOperation, http.MethodDelete, "/operations/{id}", "/operations/3", strings.NewReader(`{"reason":"duplicate"}`))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("without body", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("DeleteOperation", mock.Anything, int64(3), (*string)(nil)).Return(nil)

		rec := serve(NewOperationHandler(svc).DeleteOperation, http.MethodDelete, "/operations/{id}", "/operations/3", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestChangeHandler_GetChanges(t *testing.T) {
	snapshot, err := ledger.EncodeSnapshot(sampleExchange())
	require.NoError(t, err)
	opID := int64(7)
	reason := "typo"

	svc := new(MockLedgerService)
	svc.On("GetOperationChanges", mock.Anything, &opID).Return([]*ledger.Change{
		{ID: 2, OperationID: &opID, Action: ledger.ActionDelete, Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Snapshot: snapshot, Reason: &reason},
		{ID: 1, OperationID: &opID, Action: ledger.ActionCreate, Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Snapshot: "not json"},
	}, nil)

	rec := serve(NewChangeHandler(svc).GetChanges, http.MethodGet, "/changes", "/changes?operation_id=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChangesListResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Changes, 2)
	assert.Equal(t, "Delete", resp.Changes[0].Action)
	require.NotNil(t, resp.Changes[0].Operation)
	assert.Equal(t, "108", resp.Changes[0].Operation.TargetAmount)
	assert.Nil(t, resp.Changes[1].Operation)
	assert.Equal(t, "not json", resp.Changes[1].Snapshot)
}

func TestChangeHandler_GetChanges_InvalidFilter(t *testing.T) {
	svc := new(MockLedgerService)
	rec := serve(NewChangeHandler(svc).GetChanges, http.MethodGet, "/changes", "/changes?operation_id=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeHandler_RestoreChange(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("RestoreOperation", mock.Anything, int64(5)).Return(sampleExchange(), nil)

		rec := serve(NewChangeHandler(svc).RestoreChange, http.MethodPost, "/changes/{id}/restore", "/changes/5/restore", nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("conflict", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("RestoreOperation", mock.Anything, int64(5)).
			Return(nil, apperrors.RestoreFailed(ledger.ErrNotADeleteChange, "change #5 is a Create change"))

		rec := serve(NewChangeHandler(svc).RestoreChange, http.MethodPost, "/changes/{id}/restore", "/changes/5/restore", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, apperrors.ErrCodeRestoreFailed, resp.Code)
		assert.Equal(t, "change #5 is a Create change", resp.Error)
	})
}

func TestBalanceHandler_GetBalances(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("GetBalances", mock.Anything).Return([]*ledger.Balance{
		{Currency: "EUR", Amount: decimal.NewFromInt(100)},
		{Currency: "GEL", Amount: decimal.NewFromInt(50)},
		{Currency: "USD", Amount: decimal.RequireFromString("1234.5")},
	}, nil)
	svc.On("GetRatesToUSD", mock.Anything).Return([]*ledger.RateToUSD{
		{Currency: "EUR", Rate: decimal.RequireFromString("1.1")},
		{Currency: "GEL", Rate: decimal.Zero},
		{Currency: "USD", Rate: decimal.NewFromInt(1)},
	}, nil)

	rec := serve(NewBalanceHandler(svc).GetBalances, http.MethodGet, "/balances", "/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BalancesResponse
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Balances, 3)

	eur := resp.Balances[0]
	assert.Equal(t, "100", eur.Amount)
	assert.Equal(t, money.Format(decimal.NewFromInt(100), "EUR"), eur.Formatted)
	require.NotNil(t, eur.USDValue)
	assert.Equal(t, "110.00", *eur.USDValue)

	assert.Nil(t, resp.Balances[1].USDValue)
	assert.Equal(t, "$1,234.50", resp.Balances[2].Formatted)
	assert.Equal(t, "1344.50", resp.TotalUSD)
}

func TestBalanceHandler_GetMaxExchangeAmount(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("MaxExchangeAmount", mock.Anything, "USD").Return(decimal.RequireFromString("42.5"), nil)

		rec := serve(NewBalanceHandler(svc).GetMaxExchangeAmount, http.MethodGet, "/balances/{code}/max", "/balances/usd/max", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp MaxAmountResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "USD", resp.Currency)
		assert.Equal(t, "42.5", resp.Amount)
	})

	t.Run("nothing to spend", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("MaxExchangeAmount", mock.Anything, "RUB").
			Return(decimal.Zero, apperrors.InsufficientBalance(ledger.ErrInsufficientFunds, "no RUB available"))

		rec := serve(NewBalanceHandler(svc).GetMaxExchangeAmount, http.MethodGet, "/balances/{code}/max", "/balances/RUB/max", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestCurrencyHandler(t *testing.T) {
	t.Run("list active only", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("ListCurrencies", mock.Anything, true).Return([]*ledger.Currency{{Code: "USD", Name: "USD", IsActive: true}}, nil)

		rec := serve(NewCurrencyHandler(svc).GetCurrencies, http.MethodGet, "/currencies", "/currencies?active=true", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"currencies":[{"code":"USD","name":"USD","is_active":true}]}`, rec.Body.String())
	})

	t.Run("list rejects bad flag", func(t *testing.T) {
		svc := new(MockLedgerService)
		rec := serve(NewCurrencyHandler(svc).GetCurrencies, http.MethodGet, "/currencies", "/currencies?active=maybe", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("create defaults to active", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("AddCurrency", mock.Anything, "gel", "Georgian lari", true).
			Return(&ledger.Currency{Code: "GEL", Name: "Georgian lari", IsActive: true}, nil)

		rec := serve(NewCurrencyHandler(svc).CreateCurrency, http.MethodPost, "/currencies", "/currencies", strings.NewReader(`{"code":"gel","name":"Georgian lari"}`))
		assert.Equal(t, http.StatusCreated, rec.Code)
		svc.AssertExpectations(t)
	})

	t.Run("update unknown", func(t *testing.T) {
		svc := new(MockLedgerService)
		svc.On("UpdateCurrency", mock.Anything, "XYZ", "Nothing", false).
			Return(nil, apperrors.NotFound(ledger.ErrCurrencyNotFound, "currency"))

		rec := serve(NewCurrencyHandler(svc).UpdateCurrency, http.MethodPut, "/currencies/{code}", "/currencies/XYZ", strings.NewReader(`{"name":"Nothing","is_active":false}`))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestFxHandler_GetPair(t *testing.T) {
	t.Run("remembered rate", func(t *testing.T) {
		fx := new(MockFxService)
		fx.On("Suggest", mock.Anything, "USD", "RUB").Return(&fxdisplay.Suggestion{
			From: "USD", To: "RUB", Mode: fxdisplay.ModeInverted,
			InternalRate: decimal.RequireFromString("0.0125"), DisplayRate: decimal.NewFromInt(80),
			UpdatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		}, nil)

		rec := serve(NewFxHandler(fx).GetPair, http.MethodGet, "/fx/{from}/{to}", "/fx/usd/rub", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp PairResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "Inverted", resp.Mode)
		require.NotNil(t, resp.DisplayRate)
		assert.Equal(t, "80", *resp.DisplayRate)
		require.NotNil(t, resp.InternalRate)
		assert.Equal(t, "0.0125", *resp.InternalRate)
	})

	t.Run("never exchanged", func(t *testing.T) {
		fx := new(MockFxService)
		fx.On("Suggest", mock.Anything, "USD", "GEL").Return(nil, fxdisplay.ErrNoRememberedRate)
		fx.On("GetMode", mock.Anything, "USD", "GEL").Return(fxdisplay.ModeDirect, nil)

		rec := serve(NewFxHandler(fx).GetPair, http.MethodGet, "/fx/{from}/{to}", "/fx/USD/GEL", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"from":"USD","to":"GEL","mode":"Direct"}`, rec.Body.String())
	})
}

func TestFxHandler_SetMode_Invalid(t *testing.T) {
	fx := new(MockFxService)
	fx.On("SetMode", mock.Anything, "USD", "RUB", fxdisplay.Mode("Sideways")).Return(nil, fxdisplay.ErrInvalidMode)

	rec := serve(NewFxHandler(fx).SetMode, http.MethodPut, "/fx/{from}/{to}/mode", "/fx/USD/RUB/mode", strings.NewReader(`{"mode":"Sideways"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, fxdisplay.ErrInvalidMode.Error(), resp.Error)
}

func TestFxHandler_ToInternal(t *testing.T) {
	fx := new(MockFxService)
	fx.On("GetMode", mock.Anything, "USD", "RUB").Return(fxdisplay.ModeInverted, nil)
	fx.On("InternalRate", mock.Anything, "USD", "RUB", mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(80))
	})).Return(decimal.RequireFromString("0.0125"), nil)

	rec := serve(NewFxHandler(fx).ToInternal, http.MethodPost, "/fx/{from}/{to}/internal", "/fx/USD/RUB/internal", strings.NewReader(`{"display_rate":"80"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp InternalRateResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "0.0125", resp.InternalRate)
	assert.Equal(t, "Inverted", resp.Mode)
}

func TestMaintenanceHandler_Reconcile(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("ReconcileBalances", mock.Anything).Return([]ledger.BalanceMismatch{
		{Currency: "USD", Stored: decimal.NewFromInt(10), Computed: decimal.NewFromInt(12)},
	}, nil)

	rec := serve(NewMaintenanceHandler(svc).Reconcile, http.MethodGet, "/maintenance/reconcile", "/maintenance/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"consistent":false,"mismatches":[{"currency":"USD","stored":"10","computed":"12"}]}`, rec.Body.String())
}

func TestMaintenanceHandler_Rebuild(t *testing.T) {
	svc := new(MockLedgerService)
	svc.On("RebuildProjections", mock.Anything).Return(nil)

	rec := serve(NewMaintenanceHandler(svc).Rebuild, http.MethodPost, "/maintenance/rebuild", "/maintenance/rebuild", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := NewHealthHandler(stubPinger{}, "sqlite", "test")
		rec := serve(h.GetHealth, http.MethodGet, "/health", "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "healthy", resp.Checks["sqlite"])
	})

	t.Run("store down", func(t *testing.T) {
		h := NewHealthHandler(stubPinger{err: fmt.Errorf("closed")}, "postgres", "test")

		rec := serve(h.GetHealth, http.MethodGet, "/health", "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		rec = serve(h.GetReadiness, http.MethodGet, "/health/ready", "/health/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("liveness", func(t *testing.T) {
		rec := serve(GetLiveness, http.MethodGet, "/health/live", "/health/live", nil)
		assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
	})
}
