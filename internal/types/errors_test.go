package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      NewError(DB_QUERY_FAILED, "query failed"),
			expected: "[DB_QUERY_FAILED] query failed",
		},
		{
			name:     "with cause",
			err:      WrapError(DB_OPEN_FAILED, "cannot open", fmt.Errorf("disk full")),
			expected: "[DB_OPEN_FAILED] cannot open: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError(BROWSER_NAVIGATE_FAILED, "navigation failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_Is(t *testing.T) {
	err := NewError(BROWSER_ELEMENT_MISSING, "selector not found")
	wrapped := fmt.Errorf("node failed: %w", err)

	assert.True(t, errors.Is(wrapped, NewError(BROWSER_ELEMENT_MISSING, "other message")))
	assert.False(t, errors.Is(wrapped, NewError(BROWSER_INIT_FAILED, "other code")))
}

func TestIsRetryable(t *testing.T) {
	retryable := NewRetryableError(BROWSER_NAVIGATE_FAILED, "timeout")
	permanent := NewError(CONFIG_PARSE_FAILED, "bad yaml")

	assert.True(t, IsRetryable(retryable))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", retryable)))
	assert.False(t, IsRetryable(permanent))
	assert.False(t, IsRetryable(errors.New("plain error")))
}

func TestCodeOf(t *testing.T) {
	err := NewError(DB_NOT_FOUND, "no such workflow")

	assert.Equal(t, DB_NOT_FOUND, CodeOf(err))
	assert.Equal(t, DB_NOT_FOUND, CodeOf(fmt.Errorf("outer: %w", err)))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
