package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// Extractor is the AI capability consumed by the workflow engine's ai_*
// nodes: structured extraction from HTML (optionally with a screenshot for
// vision models), text classification, and free-form generation.
type Extractor interface {
	// ExtractData asks the model to pull structured data out of page HTML
	// according to the prompt. When screenshot is non-nil and the provider
	// supports vision, the image is attached to the request.
	ExtractData(ctx context.Context, prompt, html string, screenshot []byte) (any, error)

	// Classify assigns input to exactly one of the given categories.
	Classify(ctx context.Context, input string, categories []string) (string, error)

	// Generate produces free-form text from a prompt plus optional context.
	Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error)
}

const extractSystemPrompt = `You are a data extraction engine. You receive HTML and an
extraction instruction. Respond with ONLY a JSON document containing the
extracted data. Do not add commentary.`

const classifySystemPrompt = `You are a text classifier. You receive a text and a list of
categories. Respond with ONLY the single best-matching category name,
exactly as given. Do not add commentary.`

// maxHTMLChars bounds the HTML passed to the model. Pages routinely exceed
// the context window; truncation keeps requests within it.
const maxHTMLChars = 60000

// ProviderExtractor implements Extractor on top of a single Provider.
type ProviderExtractor struct {
	provider Provider
	model    string
	logger   *slog.Logger
}

// ExtractorOption is a functional option for configuring ProviderExtractor.
type ExtractorOption func(*ProviderExtractor)

// WithModel sets the model used for extraction requests.
func WithModel(model string) ExtractorOption {
	return func(e *ProviderExtractor) {
		e.model = model
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ExtractorOption {
	return func(e *ProviderExtractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor backed by the given provider.
func NewExtractor(provider Provider, opts ...ExtractorOption) *ProviderExtractor {
	e := &ProviderExtractor{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractData implements Extractor.
func (e *ProviderExtractor) ExtractData(ctx context.Context, prompt, html string, screenshot []byte) (any, error) {
	if len(html) > maxHTMLChars {
		html = html[:maxHTMLChars]
	}

	req := CompletionRequest{
		Model: e.model,
		Messages: []Message{
			NewSystemMessage(extractSystemPrompt),
			NewUserMessage(fmt.Sprintf("Instruction: %s\n\nHTML:\n%s", prompt, html)),
		},
		Temperature: 0.1,
	}

	var resp *CompletionResponse
	var err error
	if len(screenshot) > 0 {
		req.Images = []Image{{MIMEType: "image/png", Data: screenshot}}
		resp, err = e.provider.CompleteWithVision(ctx, req)
		if err != nil && types.CodeOf(err) == ErrVisionNotSupported {
			e.logger.Warn("provider does not support vision, retrying without screenshot",
				"provider", e.provider.Name())
			req.Images = nil
			resp, err = e.provider.Complete(ctx, req)
		}
	} else {
		resp, err = e.provider.Complete(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	value, err := DecodeJSON(resp.Message.Content)
	if err != nil {
		// The model ignored the JSON instruction; surface the raw text
		// rather than failing the node.
		e.logger.Warn("extraction reply was not JSON, returning raw text",
			"provider", e.provider.Name())
		return strings.TrimSpace(resp.Message.Content), nil
	}
	return value, nil
}

// Classify implements Extractor.
func (e *ProviderExtractor) Classify(ctx context.Context, input string, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", NewInvalidRequestError("classification requires at least one category")
	}

	req := CompletionRequest{
		Model: e.model,
		Messages: []Message{
			NewSystemMessage(classifySystemPrompt),
			NewUserMessage(fmt.Sprintf("Categories: %s\n\nText:\n%s", strings.Join(categories, ", "), input)),
		},
		Temperature: 0,
	}

	resp, err := e.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	answer := strings.TrimSpace(resp.Message.Content)
	for _, cat := range categories {
		if strings.EqualFold(answer, cat) {
			return cat, nil
		}
	}
	// Fall back to substring matching for chatty models.
	for _, cat := range categories {
		if strings.Contains(strings.ToLower(answer), strings.ToLower(cat)) {
			return cat, nil
		}
	}

	return "", types.NewError(ErrResponseParseFailed,
		fmt.Sprintf("model answered %q, which matches no category", answer))
}

// Generate implements Extractor.
func (e *ProviderExtractor) Generate(ctx context.Context, prompt, contextText string, maxTokens int) (string, error) {
	content := prompt
	if contextText != "" {
		content = fmt.Sprintf("%s\n\nContext:\n%s", prompt, contextText)
	}

	resp, err := e.provider.Complete(ctx, CompletionRequest{
		Model:       e.model,
		Messages:    []Message{NewUserMessage(content)},
		Temperature: 0.7,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Message.Content), nil
}
