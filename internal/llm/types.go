package llm

import (
	"encoding/json"
	"fmt"
)

// Role represents the role of a message in a conversation
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the Role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid value
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(r))
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Role) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	role := Role(str)
	if !role.IsValid() {
		return fmt.Errorf("invalid role: %s", str)
	}

	*r = role
	return nil
}

// Message represents a single message in a conversation with an LLM.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a new system message
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a new user message
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Validate checks if the message is valid
func (m Message) Validate() error {
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", m.Role)
	}
	if m.Content == "" {
		return fmt.Errorf("%s message must have content", m.Role)
	}
	return nil
}

// Image is an opaque image payload attached to a vision completion request.
type Image struct {
	// MIMEType is the content type, e.g. "image/png".
	MIMEType string `json:"mime_type"`
	// Data holds the raw image bytes.
	Data []byte `json:"data"`
}

// CompletionRequest describes a single completion call to a provider.
type CompletionRequest struct {
	Model         string    `json:"model,omitempty"`
	Messages      []Message `json:"messages"`
	Images        []Image   `json:"images,omitempty"`
	Temperature   float64   `json:"temperature,omitempty"`
	MaxTokens     int       `json:"max_tokens,omitempty"`
	TopP          float64   `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

// Validate checks the request for obvious problems before it reaches a provider.
func (r CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return NewInvalidRequestError("request must contain at least one message")
	}
	for i, msg := range r.Messages {
		if err := msg.Validate(); err != nil {
			return NewInvalidRequestError(fmt.Sprintf("message %d: %v", i, err))
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return NewInvalidRequestError(fmt.Sprintf("temperature must be in [0, 2], got %v", r.Temperature))
	}
	if r.MaxTokens < 0 {
		return NewInvalidRequestError(fmt.Sprintf("max_tokens must be non-negative, got %d", r.MaxTokens))
	}
	return nil
}

// TokenUsage reports token accounting for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the full, non-streaming result of a completion call.
type CompletionResponse struct {
	ID      string     `json:"id"`
	Model   string     `json:"model"`
	Message Message    `json:"message"`
	Usage   TokenUsage `json:"usage"`
}

// StreamChunk is a single token batch emitted during a streaming completion.
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Err     error  `json:"-"`
}
