package errors

import (
	"errors"
	"fmt"
)

// AppError represents an application error with additional context
type AppError struct {
	Code    string // Error code for client
	Message string // Human-readable message
	Err     error  // Underlying error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeRestoreFailed       = "RESTORE_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// Wrap wraps an error with a code and message
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation creates a validation error around a sentinel
func Validation(err error, message string) *AppError {
	return Wrap(err, ErrCodeValidation, message)
}

// NotFound creates a not found error
func NotFound(err error, resource string) *AppError {
	return Wrap(err, ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// InsufficientBalance creates an insufficient balance error
func InsufficientBalance(err error, message string) *AppError {
	return Wrap(err, ErrCodeInsufficientBalance, message)
}

// RestoreFailed creates a restore error
func RestoreFailed(err error, message string) *AppError {
	return Wrap(err, ErrCodeRestoreFailed, message)
}

// DatabaseError creates a database error
func DatabaseError(message string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, message)
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{Code: ErrCodeBadRequest, Message: message}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// CodeOf returns the code of the outermost AppError in err's chain, or ErrCodeInternal.
func CodeOf(err error) string {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ErrCodeInternal
}
