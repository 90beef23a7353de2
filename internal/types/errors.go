package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for ScrapeFlow errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
	DB_NOT_FOUND        ErrorCode = "DB_NOT_FOUND"
)

// Browser error codes
const (
	BROWSER_INIT_FAILED       ErrorCode = "BROWSER_INIT_FAILED"
	BROWSER_NAVIGATE_FAILED   ErrorCode = "BROWSER_NAVIGATE_FAILED"
	BROWSER_ELEMENT_MISSING   ErrorCode = "BROWSER_ELEMENT_MISSING"
	BROWSER_OP_UNSUPPORTED    ErrorCode = "BROWSER_OP_UNSUPPORTED"
	BROWSER_SCREENSHOT_FAILED ErrorCode = "BROWSER_SCREENSHOT_FAILED"
)

// Error represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type Error struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *Error) Is(target error) bool {
	var sfErr *Error
	if errors.As(target, &sfErr) {
		return e.Code == sfErr.Code
	}
	return false
}

// NewError creates a new non-retryable Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable Error with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable Error that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapRetryableError creates a new retryable Error that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err carries a retryable hint anywhere in its chain.
func IsRetryable(err error) bool {
	var sfErr *Error
	if errors.As(err, &sfErr) {
		return sfErr.Retryable
	}
	return false
}

// CodeOf extracts the error code from err, or empty string if err is not a
// structured Error.
func CodeOf(err error) ErrorCode {
	var sfErr *Error
	if errors.As(err, &sfErr) {
		return sfErr.Code
	}
	return ""
}
