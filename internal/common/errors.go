package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Sentinel errors for the extraction pipeline. Retry policy hangs off these:
// transient and quota errors are retried by the completion client, everything
// else is terminal for the run.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrTransient       = errors.New("transient service error")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrMalformedOutput = errors.New("malformed model output")
	ErrValidation      = errors.New("validation failed")
	ErrNoText          = errors.New("no text extracted")
	ErrNotFound        = errors.New("resource not found")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// QuotaScope sub-classifies a terminal quota failure.
type QuotaScope string

const (
	QuotaScopeWindow QuotaScope = "WINDOW" // per-minute window exhausted
	QuotaScopeDaily  QuotaScope = "DAILY"  // full daily quota exhausted
)

// QuotaError carries the server-provided hints that survived the retry loop.
type QuotaError struct {
	Scope             QuotaScope
	RetryAfter        string
	RemainingRequests string
	RemainingTokens   string
	ResetTokens       string
}

func (e *QuotaError) Error() string {
	if e.Scope == QuotaScopeDaily {
		return fmt.Sprintf("daily token limit reached, tokens reset in %s", e.ResetTokens)
	}
	return fmt.Sprintf("rate limit reached, retry after %ss", e.RetryAfter)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }
