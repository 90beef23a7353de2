package llm

import (
	"context"
)

// Provider defines the interface that all LLM providers must implement.
// It provides a unified abstraction for interacting with different LLM
// services (Anthropic Claude, OpenAI GPT, local models, etc.).
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "openai", "ollama")
	Name() string

	// Models returns information about all available models for this provider
	Models(ctx context.Context) ([]ModelInfo, error)

	// Complete sends a completion request and returns the full response.
	// This is a blocking call that waits for the entire response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CompleteWithVision sends a completion request carrying image payloads.
	// Providers that do not support vision return ErrVisionNotSupported.
	CompleteWithVision(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream sends a completion request and streams the response as it is
	// generated. The returned channel emits StreamChunk items until
	// completion or error, then is closed.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// ModelInfo contains metadata about an LLM model.
type ModelInfo struct {
	// Name is the model identifier (e.g., "gpt-4o", "claude-sonnet-4-5")
	Name string `json:"name"`

	// ContextWindow is the maximum number of tokens the model can process
	ContextWindow int `json:"context_window"`

	// Features lists the capabilities this model supports
	Features []string `json:"features"`

	// MaxOutput is the maximum number of tokens the model can generate
	MaxOutput int `json:"max_output"`
}

// SupportsFeature checks if the model supports a given feature
func (m ModelInfo) SupportsFeature(feature string) bool {
	for _, f := range m.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// SupportsVision checks if the model supports image understanding
func (m ModelInfo) SupportsVision() bool {
	return m.SupportsFeature("vision")
}

// SupportsStreaming checks if the model supports streaming responses
func (m ModelInfo) SupportsStreaming() bool {
	return m.SupportsFeature("streaming")
}
