package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
	"github.com/scrapeflow-ai/scrapeflow/internal/llm/providers"
	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := llm.NewRegistry()
	provider := providers.NewMockProvider()

	require.NoError(t, registry.RegisterProvider(provider))

	got, err := registry.GetProvider("mock")
	require.NoError(t, err)
	assert.Equal(t, provider, got)
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	registry := llm.NewRegistry()

	require.NoError(t, registry.RegisterProvider(providers.NewMockProvider()))

	err := registry.RegisterProvider(providers.NewMockProvider())
	require.Error(t, err)
	assert.Equal(t, llm.ErrProviderAlreadyExists, types.CodeOf(err))
}

func TestRegistry_RegisterNil(t *testing.T) {
	registry := llm.NewRegistry()

	err := registry.RegisterProvider(nil)
	require.Error(t, err)
	assert.Equal(t, llm.ErrProviderInvalidInput, types.CodeOf(err))
}

func TestRegistry_GetMissing(t *testing.T) {
	registry := llm.NewRegistry()

	_, err := registry.GetProvider("nope")
	require.Error(t, err)
	assert.Equal(t, llm.ErrProviderNotFound, types.CodeOf(err))
}

func TestRegistry_UnregisterProvider(t *testing.T) {
	registry := llm.NewRegistry()
	require.NoError(t, registry.RegisterProvider(providers.NewMockProvider()))

	require.NoError(t, registry.UnregisterProvider("mock"))
	assert.Empty(t, registry.ListProviders())

	assert.Error(t, registry.UnregisterProvider("mock"))
}

func TestRegistry_ListProviders(t *testing.T) {
	registry := llm.NewRegistry()
	require.NoError(t, registry.RegisterProvider(providers.NewMockProvider()))

	assert.Equal(t, []string{"mock"}, registry.ListProviders())
}

func TestMockProvider_Stream(t *testing.T) {
	provider := providers.NewMockProvider().QueueResponse("streamed text")

	ch, err := provider.Stream(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{llm.NewUserMessage("hi")},
	})
	require.NoError(t, err)

	var content string
	var done bool
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		content += chunk.Content
		done = done || chunk.Done
	}
	assert.Equal(t, "streamed text", content)
	assert.True(t, done)
}
