// Package spreadsheet reads and writes the operation log as an XLSX workbook.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ledenev737/BuhWise/internal/ledger"
	"github.com/ledenev737/BuhWise/pkg/money"
)

// SheetName is the worksheet export writes and import prefers
const SheetName = "Transactions"

// Column headers
const (
	ColID              = "Id"
	ColDate            = "Date"
	ColOperationType   = "OperationType"
	ColFromCurrency    = "FromCurrency"
	ColFromAmount      = "FromAmount"
	ColToCurrency      = "ToCurrency"
	ColToAmount        = "ToAmount"
	ColRate            = "Rate"
	ColFee             = "Fee"
	ColUSDEquivalent   = "UsdEquivalent"
	ColExpenseCategory = "ExpenseCategory"
	ColComment         = "Comment"
)

// Columns is the export column order
var Columns = []string{
	ColID, ColDate, ColOperationType, ColFromCurrency, ColFromAmount, ColToCurrency,
	ColToAmount, ColRate, ColFee, ColUSDEquivalent, ColExpenseCategory, ColComment,
}

// RequiredColumns must be present in an imported sheet
var RequiredColumns = []string{
	ColDate, ColOperationType, ColFromCurrency, ColFromAmount, ColToCurrency, ColToAmount, ColRate,
}

var (
	ErrUnreadableWorkbook   = errors.New("file is not a readable XLSX workbook")
	ErrEmptyWorkbook        = errors.New("workbook has no header row")
	ErrMissingColumn        = errors.New("required column missing")
	ErrNoOperations         = errors.New("workbook contains no operations")
	ErrInvalidCell          = errors.New("invalid cell value")
	ErrUnknownOperationType = errors.New("unknown operation type")
	ErrUSDEquivalentUnknown = errors.New("usd equivalent cannot be derived; add the UsdEquivalent column")
	ErrEmptyCurrency        = errors.New("currency is empty")
)

var kindNames = map[string]ledger.OperationKind{
	"income":     ledger.KindIncome,
	"пополнение": ledger.KindIncome,
	"expense":    ledger.KindExpense,
	"расход":     ledger.KindExpense,
	"exchange":   ledger.KindExchange,
	"обмен":      ledger.KindExchange,
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// Export writes ops to w as a workbook with a single Transactions sheet.
// ops are written in the order given. Dates are RFC 3339 text with
// nanoseconds and numbers are decimal text, so Import reads back exactly
// what was written.
func Export(w io.Writer, ops []*ledger.Operation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, op := range ops {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, cell, exportRow(op)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "L", 16); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.SetColWidth(SheetName, "B", "B", 32); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func exportRow(op *ledger.Operation) *[]any {
	var fee any
	if op.Commission != nil {
		fee = op.Commission.String()
	}
	row := []any{
		op.ID,
		op.Date.UTC().Format(time.RFC3339Nano),
		string(op.Kind),
		op.SourceCurrency,
		op.SourceAmount.String(),
		op.TargetCurrency,
		op.TargetAmount.String(),
		op.Rate.String(),
		fee,
		op.USDEquivalent.String(),
		derefOrNil(op.ExpenseCategory),
		derefOrNil(op.Comment),
	}
	return &row
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Import reads operations from an XLSX workbook. The Transactions sheet is
// used when present, otherwise the first sheet. Any unreadable row fails the
// whole import.
func Import(r io.Reader) ([]ledger.Operation, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(SheetName); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyWorkbook
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	cols := headerIndex(rows[0])
	for _, required := range RequiredColumns {
		if _, ok := cols[strings.ToLower(required)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var ops []ledger.Operation
	for i, cells := range rows[1:] {
		rr := rowReader{cells: cells, cols: cols, row: i + 2}
		if rr.text(ColDate) == "" {
			continue
		}

		op, err := rr.operation()
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}

	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	return ops, nil
}

// headerIndex maps lower-cased, trimmed header names to column positions
func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			cols[h] = i
		}
	}
	return cols
}

type rowReader struct {
	cells []string
	cols  map[string]int
	row   int
}

func (rr rowReader) operation() (*ledger.Operation, error) {
	op := &ledger.Operation{}
	var err error

	if rr.text(ColID) != "" {
		id, err := rr.decimal(ColID)
		if err != nil {
			return nil, err
		}
		op.ID = id.Round(0).IntPart()
	}

	if op.Date, err = rr.date(ColDate); err != nil {
		return nil, err
	}
	if op.Kind, err = rr.kind(ColOperationType); err != nil {
		return nil, err
	}
	if op.SourceCurrency, err = rr.currency(ColFromCurrency); err != nil {
		return nil, err
	}
	if op.SourceAmount, err = rr.decimal(ColFromAmount); err != nil {
		return nil, err
	}
	if op.TargetCurrency, err = rr.currency(ColToCurrency); err != nil {
		return nil, err
	}
	if op.TargetAmount, err = rr.decimal(ColToAmount); err != nil {
		return nil, err
	}
	if op.Rate, err = rr.decimal(ColRate); err != nil {
		return nil, err
	}

	if rr.text(ColFee) != "" {
		fee, err := rr.decimal(ColFee)
		if err != nil {
			return nil, err
		}
		op.Commission = &fee
	}
	op.ExpenseCategory = rr.optional(ColExpenseCategory)
	op.Comment = rr.optional(ColComment)

	if rr.text(ColUSDEquivalent) != "" {
		if op.USDEquivalent, err = rr.decimal(ColUSDEquivalent); err != nil {
			return nil, err
		}
	} else {
		usd, ok := deriveUSDEquivalent(op)
		if !ok {
			return nil, fmt.Errorf("%w: row %d", ErrUSDEquivalentUnknown, rr.row)
		}
		op.USDEquivalent = usd
	}

	return op, nil
}

// text returns the trimmed cell of a column; absent columns and cells read as ""
func (rr rowReader) text(col string) string {
	i, ok := rr.cols[strings.ToLower(col)]
	if !ok || i >= len(rr.cells) {
		return ""
	}
	return strings.TrimSpace(rr.cells[i])
}

func (rr rowReader) optional(col string) *string {
	v := rr.text(col)
	if v == "" {
		return nil
	}
	return &v
}

func (rr rowReader) invalid(col, value string) error {
	return fmt.Errorf("%w: row %d column %s: %q", ErrInvalidCell, rr.row, col, value)
}

func (rr rowReader) decimal(col string) (decimal.Decimal, error) {
	raw := rr.text(col)
	d, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, rr.invalid(col, raw)
	}
	return d, nil
}

func (rr rowReader) currency(col string) (string, error) {
	code := money.NormalizeCode(rr.text(col))
	if code == "" {
		return "", fmt.Errorf("%w: row %d column %s", ErrEmptyCurrency, rr.row, col)
	}
	return code, nil
}

func (rr rowReader) kind(col string) (ledger.OperationKind, error) {
	raw := rr.text(col)
	if k, ok := kindNames[strings.ToLower(raw)]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: row %d: %q", ErrUnknownOperationType, rr.row, raw)
}

// date accepts Excel serial numbers and the common textual layouts, all read as UTC
func (rr rowReader) date(col string) (time.Time, error) {
	raw := rr.text(col)
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, rr.invalid(col, raw)
		}
		return t.UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, rr.invalid(col, raw)
}

// deriveUSDEquivalent computes the USD value of an imported row when the
// sheet does not carry one. Cross exchanges without USD on either side
// cannot be derived.
func deriveUSDEquivalent(op *ledger.Operation) (decimal.Decimal, bool) {
	switch op.Kind {
	case ledger.KindIncome, ledger.KindExpense:
		if op.SourceCurrency == money.USD {
			return op.SourceAmount, true
		}
		return op.SourceAmount.Mul(op.Rate), true
	case ledger.KindExchange:
		switch {
		case op.TargetCurrency == money.USD:
			return op.TargetAmount, true
		case op.SourceCurrency == money.USD:
			return op.SourceAmount, true
		}
	}
	return decimal.Zero, false
}
