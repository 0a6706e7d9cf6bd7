// Package domain carries the error taxonomy shared by the dispatch
// pipeline and the HTTP ingress: every error that can reach a webhook
// sender is an AppError with a fixed status code attached at the point
// it's created, the same shape the rest of this codebase's ancestry
// uses for API errors.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the class of failure, independent of its message.
type ErrorCode string

const (
	ErrCodeConfig    ErrorCode = "CONFIG_ERROR"
	ErrCodeSignature ErrorCode = "SIGNATURE_ERROR"
	ErrCodePayload   ErrorCode = "PAYLOAD_ERROR"
	ErrCodeCapacity  ErrorCode = "CAPACITY_ERROR"
	ErrCodeCommand   ErrorCode = "COMMAND_ERROR"
	ErrCodeIO        ErrorCode = "IO_ERROR"
	ErrCodeInternal  ErrorCode = "INTERNAL_ERROR"
)

// AppError is the error type that crosses the HTTP boundary: it carries
// the status code the ingress should respond with alongside a message
// safe to show the webhook sender.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// WithDetails returns a copy of e with additional detail text
// attached. The predefined errors below are shared package-level
// values, so this must never mutate e in place — concurrent requests
// hitting the same error kind would otherwise race on its fields.
func (e *AppError) WithDetails(details string) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithError returns a copy of e wrapping an underlying error, borrowing
// its text as the detail if none was set explicitly.
func (e *AppError) WithError(err error) *AppError {
	clone := *e
	clone.Err = err
	if clone.Details == "" && err != nil {
		clone.Details = err.Error()
	}
	return &clone
}

// Predefined errors for the status codes spec.md §6/§7 names explicitly.
var (
	ErrMissingSignature     = NewAppError(ErrCodeSignature, "missing signature", http.StatusUnauthorized)
	ErrTooManySignatures    = NewAppError(ErrCodeSignature, "too many signatures", http.StatusUnauthorized)
	ErrBadSignatureFormat   = NewAppError(ErrCodeSignature, "could not parse signature", http.StatusUnauthorized)
	ErrSignatureMismatch    = NewAppError(ErrCodeSignature, "signature doesn't match", http.StatusUnauthorized)
	ErrCouldNotParsePayload = NewAppError(ErrCodePayload, "could not parse message", http.StatusBadRequest)
	ErrServiceUnavailable   = NewAppError(ErrCodeCapacity, "service unavailable", http.StatusServiceUnavailable)
	ErrInternal             = NewAppError(ErrCodeInternal, "internal server error", http.StatusInternalServerError)
)

// IsAppError unwraps err looking for an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
