package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// LLM error codes
const (
	// Provider errors
	ErrProviderNotFound      types.ErrorCode = "LLM_PROVIDER_NOT_FOUND"
	ErrProviderInitFailed    types.ErrorCode = "LLM_PROVIDER_INIT_FAILED"
	ErrProviderUnavailable   types.ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
	ErrProviderUnauthorized  types.ErrorCode = "LLM_PROVIDER_UNAUTHORIZED"
	ErrProviderRateLimited   types.ErrorCode = "LLM_PROVIDER_RATE_LIMITED"
	ErrProviderAlreadyExists types.ErrorCode = "LLM_PROVIDER_ALREADY_EXISTS"
	ErrProviderInvalidInput  types.ErrorCode = "LLM_PROVIDER_INVALID_INPUT"

	// Request errors
	ErrInvalidRequest      types.ErrorCode = "LLM_INVALID_REQUEST"
	ErrVisionNotSupported  types.ErrorCode = "LLM_VISION_NOT_SUPPORTED"
	ErrCompletionFailed    types.ErrorCode = "LLM_COMPLETION_FAILED"
	ErrStreamingFailed     types.ErrorCode = "LLM_STREAMING_FAILED"
	ErrResponseParseFailed types.ErrorCode = "LLM_RESPONSE_PARSE_FAILED"
	ErrContextCanceled     types.ErrorCode = "LLM_CONTEXT_CANCELED"

	// Network errors
	ErrNetworkFailed  types.ErrorCode = "LLM_NETWORK_FAILED"
	ErrNetworkTimeout types.ErrorCode = "LLM_NETWORK_TIMEOUT"
)

// NewAuthError creates an error for missing or rejected provider credentials.
func NewAuthError(provider string, cause error) error {
	return types.WrapError(ErrProviderUnauthorized, "missing or invalid credentials for provider "+provider, cause)
}

// NewInvalidRequestError creates an error for a malformed completion request.
func NewInvalidRequestError(message string) error {
	return types.NewError(ErrInvalidRequest, message)
}

// TranslateError converts an arbitrary provider SDK error into a structured
// error with an appropriate code and retryability hint. Classification is
// necessarily heuristic: SDKs surface transport failures as opaque strings.
func TranslateError(provider string, err error) error {
	if err == nil {
		return nil
	}

	var sfErr *types.Error
	if errors.As(err, &sfErr) {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return types.WrapError(ErrContextCanceled, "completion canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapRetryableError(ErrNetworkTimeout, provider+" request timed out", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return types.WrapRetryableError(ErrProviderRateLimited, provider+" rate limited", err)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "401"), strings.Contains(msg, "api key"):
		return types.WrapError(ErrProviderUnauthorized, provider+" rejected credentials", err)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return types.WrapRetryableError(ErrNetworkTimeout, provider+" request timed out", err)
	case strings.Contains(msg, "connection"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "502"), strings.Contains(msg, "503"):
		return types.WrapRetryableError(ErrProviderUnavailable, provider+" unavailable", err)
	default:
		return types.WrapError(ErrCompletionFailed, provider+" completion failed", err)
	}
}

// IsRetryable determines if an error is transient and may succeed on retry.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
