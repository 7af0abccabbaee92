package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrapsSentinel(t *testing.T) {
	err := NewAppError("MISSING_VENDOR", "vendor_name is required", ErrValidation)

	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "MISSING_VENDOR")
	assert.Contains(t, err.Error(), "vendor_name is required")
}

func TestAppErrorWithoutCause(t *testing.T) {
	err := NewAppError("STORE_OPEN", "failed to open database", nil)
	assert.Equal(t, "STORE_OPEN: failed to open database", err.Error())
	assert.Nil(t, errors.Unwrap(err))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "context"))

	err := WrapError(ErrTransient, "completion call")
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "completion call")
}

func TestQuotaErrorClassification(t *testing.T) {
	window := &QuotaError{Scope: QuotaScopeWindow, RetryAfter: "12"}
	assert.ErrorIs(t, window, ErrQuotaExceeded)
	assert.Contains(t, window.Error(), "retry after 12s")

	daily := &QuotaError{Scope: QuotaScopeDaily, ResetTokens: "4h12m"}
	assert.ErrorIs(t, daily, ErrQuotaExceeded)
	assert.Contains(t, daily.Error(), "4h12m")
}
