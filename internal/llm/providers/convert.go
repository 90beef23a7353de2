package providers

import (
	"context"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/scrapeflow-ai/scrapeflow/internal/llm"
)

// toLangchainMessages converts ScrapeFlow messages to langchaingo
// MessageContent. Images, if present, are attached to the last user message.
func toLangchainMessages(req llm.CompletionRequest) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(req.Messages))

	lastUser := -1
	for i, msg := range req.Messages {
		if msg.Role == llm.RoleUser {
			lastUser = i
		}
	}

	for i, msg := range req.Messages {
		var role schema.ChatMessageType
		switch msg.Role {
		case llm.RoleSystem:
			role = schema.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = schema.ChatMessageTypeAI
		default:
			role = schema.ChatMessageTypeHuman
		}

		parts := []llms.ContentPart{llms.TextPart(msg.Content)}
		if i == lastUser {
			for _, img := range req.Images {
				parts = append(parts, llms.BinaryPart(img.MIMEType, img.Data))
			}
		}

		result = append(result, llms.MessageContent{Role: role, Parts: parts})
	}

	return result
}

// fromLangchainResponse converts a langchaingo response to a ScrapeFlow response.
func fromLangchainResponse(resp *llms.ContentResponse, model string) *llm.CompletionResponse {
	out := &llm.CompletionResponse{
		ID:    uuid.New().String(),
		Model: model,
		Message: llm.Message{
			Role: llm.RoleAssistant,
		},
	}
	if resp != nil && len(resp.Choices) > 0 {
		out.Message.Content = resp.Choices[0].Content
	}
	return out
}

// buildCallOptions converts a ScrapeFlow request to langchaingo call options.
func buildCallOptions(req llm.CompletionRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0, 5)

	if req.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.MaxTokens))
	}
	if req.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(req.TopP))
	}
	if len(req.StopSequences) > 0 {
		callOpts = append(callOpts, llms.WithStopWords(req.StopSequences))
	}
	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	}

	return callOpts
}

// buildStreamingCallOptions builds call options with a streaming callback.
func buildStreamingCallOptions(req llm.CompletionRequest, streamFunc func(ctx context.Context, chunk []byte) error) []llms.CallOption {
	return append(buildCallOptions(req), llms.WithStreamingFunc(streamFunc))
}

// streamViaModel runs a streaming completion against a langchaingo model and
// bridges the callback into a StreamChunk channel.
func streamViaModel(ctx context.Context, name string, model llms.Model, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	chunkChan := make(chan llm.StreamChunk, 10)

	messages := toLangchainMessages(req)
	callOpts := buildStreamingCallOptions(req, func(ctx context.Context, chunk []byte) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunkChan <- llm.StreamChunk{Content: string(chunk)}:
			return nil
		}
	})

	go func() {
		defer close(chunkChan)
		if _, err := model.GenerateContent(ctx, messages, callOpts...); err != nil {
			chunkChan <- llm.StreamChunk{Err: llm.TranslateError(name, err)}
			return
		}
		chunkChan <- llm.StreamChunk{Done: true}
	}()

	return chunkChan, nil
}
