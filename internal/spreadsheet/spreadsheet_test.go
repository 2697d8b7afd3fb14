package spreadsheet

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ledenev737/BuhWise/internal/infra/sqlite"
	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

// workbook builds an in-memory XLSX whose first sheet holds rows
func workbook(t *testing.T, sheet string, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

var fullHeader = []any{"Id", "Date", "OperationType", "FromCurrency", "FromAmount", "ToCurrency", "ToAmount", "Rate", "Fee", "UsdEquivalent", "ExpenseCategory", "Comment"}

func TestImport_MixedFormats(t *testing.T) {
	buf := workbook(t, "Data",
		[]any{" date ", "OPERATIONTYPE", "fromcurrency", "FromAmount", "ToCurrency", "ToAmount", "Rate", "Fee", "ExpenseCategory"},
		[]any{"2024-01-05", "Пополнение", "usd", "1 000,50", "usd", "1000,50", "1", "", ""},
		[]any{"", "Expense", "USD", "1", "USD", "1", "1", "", ""},
		[]any{"07.01.2024", "Обмен", "USD", "100", "EUR", "90", "0.9", "0,5", ""},
		[]any{"2024-01-08 13:30:00", "Расход", "EUR", "10", "EUR", "10", "1.1", "", "Food"},
	)

	ops, err := Import(buf)
	require.NoError(t, err)
	require.Len(t, ops, 3)

	income := ops[0]
	assert.Equal(t, ledger.KindIncome, income.Kind)
	assert.Equal(t, "USD", income.SourceCurrency)
	assert.True(t, decimal.RequireFromString("1000.5").Equal(income.SourceAmount))
	assert.True(t, decimal.RequireFromString("1000.5").Equal(income.USDEquivalent))
	assert.True(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).Equal(income.Date))
	assert.Zero(t, income.ID)

	exchange := ops[1]
	assert.Equal(t, ledger.KindExchange, exchange.Kind)
	assert.True(t, time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC).Equal(exchange.Date))
	require.NotNil(t, exchange.Commission)
	assert.True(t, decimal.RequireFromString("0.5").Equal(*exchange.Commission))
	assert.True(t, decimal.NewFromInt(100).Equal(exchange.USDEquivalent))

	expense := ops[2]
	assert.Equal(t, ledger.KindExpense, expense.Kind)
	assert.True(t, time.Date(2024, 1, 8, 13, 30, 0, 0, time.UTC).Equal(expense.Date))
	assert.True(t, decimal.NewFromInt(11).Equal(expense.USDEquivalent))
	require.NotNil(t, expense.ExpenseCategory)
	assert.Equal(t, "Food", *expense.ExpenseCategory)
	assert.Nil(t, expense.Comment)
}

func TestImport_ExcelDateSerial(t *testing.T) {
	buf := workbook(t, SheetName,
		[]any{"Date", "OperationType", "FromCurrency", "FromAmount", "ToCurrency", "ToAmount", "Rate"},
		[]any{45292, "Income", "USD", 5, "USD", 5, 1},
	)

	ops, err := Import(buf)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(ops[0].Date), ops[0].Date.String())
}

func TestImport_Errors(t *testing.T) {
	header := []any{"Date", "OperationType", "FromCurrency", "FromAmount", "ToCurrency", "ToAmount", "Rate"}

	tests := []struct {
		name string
		rows [][]any
		want error
	}{
		{
			name: "missing required column",
			rows: [][]any{{"Date", "OperationType", "FromCurrency", "FromAmount", "ToCurrency", "ToAmount"}},
			want: ErrMissingColumn,
		},
		{
			name: "only header",
			rows: [][]any{header},
			want: ErrNoOperations,
		},
		{
			name: "unknown type",
			rows: [][]any{header, {"2024-01-01", "Gift", "USD", "1", "USD", "1", "1"}},
			want: ErrUnknownOperationType,
		},
		{
			name: "bad amount",
			rows: [][]any{header, {"2024-01-01", "Income", "USD", "lots", "USD", "1", "1"}},
			want: ErrInvalidCell,
		},
		{
			name: "bad date",
			rows: [][]any{header, {"someday", "Income", "USD", "1", "USD", "1", "1"}},
			want: ErrInvalidCell,
		},
		{
			name: "empty currency",
			rows: [][]any{header, {"2024-01-01", "Income", " ", "1", "USD", "1", "1"}},
			want: ErrEmptyCurrency,
		},
		{
			name: "cross exchange without usd equivalent",
			rows: [][]any{header, {"2024-01-01", "Exchange", "EUR", "1", "RUB", "100", "100"}},
			want: ErrUSDEquivalentUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(workbook(t, SheetName, tt.rows...))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestImport_NotAWorkbook(t *testing.T) {
	_, err := Import(bytes.NewBufferString("id,date\n1,2024-01-01\n"))
	assert.ErrorIs(t, err, ErrUnreadableWorkbook)
}

func TestExport_ThenImport(t *testing.T) {
	fee := decimal.RequireFromString("1.5")
	comment := "airport"
	ops := []*ledger.Operation{
		{
			ID: 9, Date: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Kind: ledger.KindExchange,
			SourceCurrency: "EUR", SourceAmount: decimal.NewFromInt(100),
			TargetCurrency: "USD", TargetAmount: decimal.RequireFromString("107.5"),
			Rate: decimal.RequireFromString("1.075"), Commission: &fee,
			USDEquivalent: decimal.RequireFromString("107.5"), Comment: &comment,
		},
		{
			ID: 3, Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Kind: ledger.KindIncome,
			SourceCurrency: "EUR", SourceAmount: decimal.NewFromInt(200),
			TargetCurrency: "EUR", TargetAmount: decimal.NewFromInt(200),
			Rate: decimal.RequireFromString("1.1"), USDEquivalent: decimal.NewFromInt(220),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, ops))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	header, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.NotEmpty(t, header)
	assert.Equal(t, Columns, header[0])
	require.NoError(t, f.Close())

	got, err := Import(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(9), got[0].ID)
	assert.Equal(t, ledger.KindExchange, got[0].Kind)
	assert.True(t, ops[0].Date.Equal(got[0].Date))
	assert.True(t, ops[0].TargetAmount.Equal(got[0].TargetAmount))
	require.NotNil(t, got[0].Commission)
	assert.True(t, fee.Equal(*got[0].Commission))
	require.NotNil(t, got[0].Comment)
	assert.Equal(t, "airport", *got[0].Comment)

	assert.Equal(t, int64(3), got[1].ID)
	assert.Nil(t, got[1].Commission)
	assert.True(t, decimal.NewFromInt(220).Equal(got[1].USDEquivalent))
}

func TestExport_ReplaceKeepsDerivedState(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := ledger.NewService(sqlite.NewLedgerRepository(db), logger.Discard())
	require.NoError(t, svc.Bootstrap(ctx))

	at := func(nsec int) time.Time { return time.Date(2024, 5, 6, 9, 0, 0, nsec, time.UTC) }
	rate := func(s string) *decimal.Decimal { d := decimal.RequireFromString(s); return &d }

	drafts := []ledger.Draft{
		{Date: at(0), Kind: ledger.KindIncome, SourceCurrency: "EUR", SourceAmount: decimal.RequireFromString("1234567.1234567891"), Rate: rate("1.0000000001")},
		// same second, recorded first but dated later
		{Date: at(400_000_000), Kind: ledger.KindExchange, SourceCurrency: "EUR", SourceAmount: decimal.NewFromInt(10), TargetCurrency: "USD", Rate: rate("1.2")},
		{Date: at(100_000_000), Kind: ledger.KindExchange, SourceCurrency: "EUR", SourceAmount: decimal.NewFromInt(10), TargetCurrency: "USD", Rate: rate("1.3")},
		{Date: time.Date(2024, 5, 6, 13, 17, 43, 123456789, time.UTC), Kind: ledger.KindExpense, SourceCurrency: "USD", SourceAmount: decimal.RequireFromString("0.333333333333"), ExpenseCategory: strPtr("Fees"), Comment: strPtr("bank")},
	}
	for _, d := range drafts {
		_, err := svc.CreateOperation(ctx, d)
		require.NoError(t, err)
	}

	snapshot := func() (map[string]string, map[string]string, []*ledger.Operation) {
		balances, err := svc.GetBalances(ctx)
		require.NoError(t, err)
		rates, err := svc.GetRatesToUSD(ctx)
		require.NoError(t, err)
		ops, err := svc.GetOperations(ctx)
		require.NoError(t, err)

		b := make(map[string]string, len(balances))
		for _, x := range balances {
			b[x.Currency] = x.Amount.String()
		}
		r := make(map[string]string, len(rates))
		for _, x := range rates {
			r[x.Currency] = x.Rate.String()
		}
		return b, r, ops
	}

	wantBalances, wantRates, wantOps := snapshot()
	require.Equal(t, "1.2", wantRates["EUR"])

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, wantOps))
	imported, err := Import(&buf)
	require.NoError(t, err)
	require.NoError(t, svc.ReplaceAllOperations(ctx, imported))

	gotBalances, gotRates, gotOps := snapshot()
	assert.Equal(t, wantBalances, gotBalances)
	assert.Equal(t, wantRates, gotRates)

	require.Len(t, gotOps, len(wantOps))
	for i := range wantOps {
		want, got := wantOps[i], gotOps[i]
		assert.True(t, want.Date.Equal(got.Date), "date %s != %s", want.Date, got.Date)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.SourceAmount.String(), got.SourceAmount.String())
		assert.Equal(t, want.TargetAmount.String(), got.TargetAmount.String())
		assert.Equal(t, want.Rate.String(), got.Rate.String())
		assert.Equal(t, want.USDEquivalent.String(), got.USDEquivalent.String())
		assert.Equal(t, want.Comment, got.Comment)
	}
}

func strPtr(s string) *string { return &s }
