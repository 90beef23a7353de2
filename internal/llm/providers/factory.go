package providers

import (
	"fmt"

	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// Config holds provider construction settings.
type Config struct {
	// Name selects the provider: "openai", "anthropic", "ollama", "mock".
	Name string `yaml:"name" json:"name"`
	// APIKey authenticates against the provider; falls back to the
	// provider's conventional environment variable when empty.
	APIKey string `yaml:"api_key" json:"api_key,omitempty"`
	// DefaultModel is used when a request does not name a model.
	DefaultModel string `yaml:"model" json:"model,omitempty"`
	// BaseURL overrides the provider endpoint (proxies, local daemons).
	BaseURL string `yaml:"base_url" json:"base_url,omitempty"`
}

// New constructs a provider from its config.
func New(cfg Config) (llm.Provider, error) {
	switch cfg.Name {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, types.NewError(llm.ErrProviderNotFound,
			fmt.Sprintf("unknown provider: %q", cfg.Name))
	}
}
