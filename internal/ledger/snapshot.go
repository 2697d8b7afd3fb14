package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledenev737/BuhWise/pkg/money"
)

const (
	snapshotSchema  = "operation"
	snapshotVersion = 1
)

// operationSnapshot is the change-log wire form of an operation. Fields may
// only be added; decoding is case-insensitive on keys so snapshots written
// with PascalCase keys and without schema/version still decode.
type operationSnapshot struct {
	Schema          string           `json:"schema,omitempty"`
	Version         int              `json:"version,omitempty"`
	ID              int64            `json:"id"`
	Date            snapshotTime     `json:"date"`
	Type            OperationKind    `json:"type"`
	SourceCurrency  string           `json:"sourceCurrency"`
	SourceAmount    decimal.Decimal  `json:"sourceAmount"`
	TargetCurrency  string           `json:"targetCurrency"`
	TargetAmount    decimal.Decimal  `json:"targetAmount"`
	Rate            decimal.Decimal  `json:"rate"`
	Commission      *decimal.Decimal `json:"commission"`
	USDEquivalent   decimal.Decimal  `json:"usdEquivalent"`
	ExpenseCategory *string          `json:"expenseCategory"`
	Comment         *string          `json:"comment"`
}

// EncodeSnapshot serializes op for the change log.
func EncodeSnapshot(op *Operation) (string, error) {
	snap := operationSnapshot{
		Schema:          snapshotSchema,
		Version:         snapshotVersion,
		ID:              op.ID,
		Date:            snapshotTime(op.Date),
		Type:            op.Kind,
		SourceCurrency:  op.SourceCurrency,
		SourceAmount:    op.SourceAmount,
		TargetCurrency:  op.TargetCurrency,
		TargetAmount:    op.TargetAmount,
		Rate:            op.Rate,
		Commission:      op.Commission,
		USDEquivalent:   op.USDEquivalent,
		ExpenseCategory: op.ExpenseCategory,
		Comment:         op.Comment,
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(b), nil
}

// DecodeSnapshot parses a change-log snapshot back into an operation.
// Every failure wraps ErrSnapshotUnreadable.
func DecodeSnapshot(text string) (*Operation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty snapshot", ErrSnapshotUnreadable)
	}

	var snap operationSnapshot
	if err := json.Unmarshal([]byte(text), &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotUnreadable, err)
	}

	if snap.Schema != "" && snap.Schema != snapshotSchema {
		return nil, fmt.Errorf("%w: unexpected schema %q", ErrSnapshotUnreadable, snap.Schema)
	}
	if !snap.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown operation type %q", ErrSnapshotUnreadable, snap.Type)
	}
	if snap.SourceCurrency == "" || time.Time(snap.Date).IsZero() {
		return nil, fmt.Errorf("%w: missing source currency or date", ErrSnapshotUnreadable)
	}

	op := &Operation{
		ID:              snap.ID,
		Date:            time.Time(snap.Date).UTC(),
		Kind:            snap.Type,
		SourceCurrency:  money.NormalizeCode(snap.SourceCurrency),
		SourceAmount:    snap.SourceAmount,
		TargetCurrency:  money.NormalizeCode(snap.TargetCurrency),
		TargetAmount:    snap.TargetAmount,
		Rate:            snap.Rate,
		Commission:      snap.Commission,
		USDEquivalent:   snap.USDEquivalent,
		ExpenseCategory: snap.ExpenseCategory,
		Comment:         snap.Comment,
	}
	if op.TargetCurrency == "" {
		op.TargetCurrency = op.SourceCurrency
	}

	return op, nil
}

// snapshotTime writes RFC 3339 and also reads round-trip timestamps that
// carry no zone, which are taken as UTC.
type snapshotTime time.Time

var snapshotTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t snapshotTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *snapshotTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range snapshotTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = snapshotTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", s)
}
