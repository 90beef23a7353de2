package providers

import (
	"context"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// OllamaProvider implements llm.Provider for locally hosted Ollama models.
type OllamaProvider struct {
	client *ollama.LLM
	config Config
}

// NewOllamaProvider creates a new Ollama provider. No API key is required;
// BaseURL defaults to the local Ollama daemon.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	opts := []ollama.Option{}
	if cfg.DefaultModel != "" {
		opts = append(opts, ollama.WithModel(cfg.DefaultModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, llm.TranslateError("ollama", err)
	}

	return &OllamaProvider{client: client, config: cfg}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Models returns the configured model. Ollama's catalogue is dynamic, so the
// registry only advertises what was configured.
func (p *OllamaProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	name := p.config.DefaultModel
	if name == "" {
		name = "llama3"
	}
	return []llm.ModelInfo{
		{
			Name:          name,
			ContextWindow: 8192,
			MaxOutput:     4096,
			Features:      []string{"chat", "streaming"},
		},
	}, nil
}

// Complete sends a completion request.
func (p *OllamaProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := p.client.GenerateContent(ctx, toLangchainMessages(req), buildCallOptions(req)...)
	if err != nil {
		return nil, llm.TranslateError("ollama", err)
	}

	return fromLangchainResponse(resp, req.Model), nil
}

// CompleteWithVision is not supported by text-only local models.
func (p *OllamaProvider) CompleteWithVision(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, types.NewError(llm.ErrVisionNotSupported, "ollama provider does not support vision requests")
}

// Stream sends a streaming completion request.
func (p *OllamaProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return streamViaModel(ctx, "ollama", p.client, req)
}
