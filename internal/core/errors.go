// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Provider errors
	ErrSymbolNotFound = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}
	ErrRateLimited    = &Error{Code: "RATE_LIMITED", Message: "provider rate limited"}
	ErrFetchTimeout   = &Error{Code: "FETCH_TIMEOUT", Message: "provider fetch timed out"}

	// Pipeline errors
	ErrDataUnavailable  = &Error{Code: "DATA_UNAVAILABLE", Message: "historical data unavailable"}
	ErrInsufficientData = &Error{Code: "INSUFFICIENT_DATA", Message: "insufficient data for prediction"}
	ErrModelUnavailable = &Error{Code: "MODEL_UNAVAILABLE", Message: "sub-model unavailable"}

	// Request errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Simulation errors
	ErrSimInvariant   = &Error{Code: "SIM_INVARIANT", Message: "simulation invariant violated"}
	ErrBacktestFailed = &Error{Code: "BACKTEST_FAILED", Message: "backtest failed"}

	// API errors
	ErrJobNotFound = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}
)

// Retryable reports whether an error is a transient provider failure that
// the orchestrator may retry with backoff.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrFetchTimeout)
}
