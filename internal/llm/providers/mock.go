package providers

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
)

// MockProvider is an in-memory llm.Provider for tests and offline runs.
// Responses are served from a queue; when the queue is empty a canned reply
// is returned. All received requests are recorded for assertions.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	Requests  []llm.CompletionRequest
}

// NewMockProvider creates an empty MockProvider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// QueueResponse appends a reply to the response queue.
func (p *MockProvider) QueueResponse(content string) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, content)
	p.errs = append(p.errs, nil)
	return p
}

// QueueError appends a failure to the response queue.
func (p *MockProvider) QueueError(err error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, "")
	p.errs = append(p.errs, err)
	return p
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return "mock"
}

// Models returns a single fake model.
func (p *MockProvider) Models(ctx context.Context) ([]llm.ModelInfo, error) {
	return []llm.ModelInfo{
		{
			Name:          "mock-1",
			ContextWindow: 32768,
			MaxOutput:     4096,
			Features:      []string{"chat", "streaming", "vision", "json_mode"},
		},
	}, nil
}

func (p *MockProvider) next(req llm.CompletionRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Requests = append(p.Requests, req)

	if len(p.responses) == 0 {
		return "mock response", nil
	}
	content, err := p.responses[0], p.errs[0]
	p.responses = p.responses[1:]
	p.errs = p.errs[1:]
	return content, err
}

// Complete serves the next queued response.
func (p *MockProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	content, err := p.next(req)
	if err != nil {
		return nil, err
	}

	return &llm.CompletionResponse{
		ID:      uuid.New().String(),
		Model:   "mock-1",
		Message: llm.NewAssistantMessage(content),
	}, nil
}

// CompleteWithVision serves the next queued response.
func (p *MockProvider) CompleteWithVision(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return p.Complete(ctx, req)
}

// Stream serves the next queued response as a single chunk.
func (p *MockProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	chunkChan := make(chan llm.StreamChunk, 2)
	chunkChan <- llm.StreamChunk{Content: resp.Message.Content}
	chunkChan <- llm.StreamChunk{Done: true}
	close(chunkChan)
	return chunkChan, nil
}
