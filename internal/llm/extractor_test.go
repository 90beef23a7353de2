package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
	"github.com/scrapeflow-ai/scrapeflow/internal/llm/providers"
)

func TestExtractor_ExtractData_JSON(t *testing.T) {
	provider := providers.NewMockProvider().
		QueueResponse("```json\n{\"name\": \"Acme Widget\", \"price\": 19.99}\n```")
	extractor := llm.NewExtractor(provider)

	value, err := extractor.ExtractData(context.Background(), "extract product", "<html><h1>Acme Widget</h1></html>", nil)
	require.NoError(t, err)

	m, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme Widget", m["name"])
	assert.Equal(t, 19.99, m["price"])
}

func TestExtractor_ExtractData_NonJSONFallsBackToText(t *testing.T) {
	provider := providers.NewMockProvider().QueueResponse("just some prose")
	extractor := llm.NewExtractor(provider)

	value, err := extractor.ExtractData(context.Background(), "extract", "<html></html>", nil)
	require.NoError(t, err)
	assert.Equal(t, "just some prose", value)
}

func TestExtractor_ExtractData_ProviderError(t *testing.T) {
	provider := providers.NewMockProvider().QueueError(errors.New("boom"))
	extractor := llm.NewExtractor(provider)

	_, err := extractor.ExtractData(context.Background(), "extract", "<html></html>", nil)
	assert.Error(t, err)
}

func TestExtractor_ExtractData_AttachesScreenshot(t *testing.T) {
	provider := providers.NewMockProvider().QueueResponse(`{"ok": true}`)
	extractor := llm.NewExtractor(provider)

	_, err := extractor.ExtractData(context.Background(), "extract", "<html></html>", []byte{0x89, 0x50})
	require.NoError(t, err)

	require.Len(t, provider.Requests, 1)
	require.Len(t, provider.Requests[0].Images, 1)
	assert.Equal(t, "image/png", provider.Requests[0].Images[0].MIMEType)
}

func TestExtractor_Classify(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		expected string
		wantErr  bool
	}{
		{"exact match", "electronics", "electronics", false},
		{"case insensitive", "Electronics", "electronics", false},
		{"chatty reply", "The category is electronics.", "electronics", false},
		{"no match", "kitchenware", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := providers.NewMockProvider().QueueResponse(tt.reply)
			extractor := llm.NewExtractor(provider)

			got, err := extractor.Classify(context.Background(), "a laptop", []string{"electronics", "clothing"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractor_Classify_NoCategories(t *testing.T) {
	extractor := llm.NewExtractor(providers.NewMockProvider())

	_, err := extractor.Classify(context.Background(), "text", nil)
	assert.Error(t, err)
}

func TestExtractor_Generate(t *testing.T) {
	provider := providers.NewMockProvider().QueueResponse("  generated summary  ")
	extractor := llm.NewExtractor(provider, llm.WithModel("mock-1"))

	got, err := extractor.Generate(context.Background(), "summarize", "long article text", 256)
	require.NoError(t, err)
	assert.Equal(t, "generated summary", got)

	require.Len(t, provider.Requests, 1)
	assert.Equal(t, 256, provider.Requests[0].MaxTokens)
	assert.Contains(t, provider.Requests[0].Messages[0].Content, "long article text")
}
