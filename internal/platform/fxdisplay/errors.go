package fxdisplay

import "errors"

var (
	// Validation errors
	ErrInvalidPair = errors.New("both currencies of the pair are required")
	ErrInvalidMode = errors.New("display mode must be Direct or Inverted")
	ErrInvalidRate = errors.New("rate must be greater than zero")

	// Repository errors
	ErrPreferenceNotFound = errors.New("display preference not found")
	ErrNoRememberedRate   = errors.New("no rate remembered for pair")
)
