package fxdisplay

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mode tells how a pair's rate is shown to the user
type Mode string

const (
	// ModeDirect shows target units per source unit, the stored form.
	ModeDirect Mode = "Direct"
	// ModeInverted shows source units per target unit.
	ModeInverted Mode = "Inverted"
)

// IsValid checks if the mode is known
func (m Mode) IsValid() bool {
	return m == ModeDirect || m == ModeInverted
}

// Preference is the stored display mode of an ordered currency pair
type Preference struct {
	From      string
	To        string
	Mode      Mode
	UpdatedAt time.Time
}

// Suggestion is the last exchange rate of a pair in both forms, used to
// prefill an exchange form.
type Suggestion struct {
	From         string
	To           string
	Mode         Mode
	InternalRate decimal.Decimal
	DisplayRate  decimal.Decimal
	UpdatedAt    time.Time
}
