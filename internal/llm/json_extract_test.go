package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		expected string
		wantErr  bool
	}{
		{
			name:     "fenced json block",
			response: "Here you go:\n```json\n{\"title\": \"Widget\"}\n```\nAnything else?",
			expected: `{"title": "Widget"}`,
		},
		{
			name:     "fenced block without language",
			response: "```\n[1, 2, 3]\n```",
			expected: `[1, 2, 3]`,
		},
		{
			name:     "raw object in prose",
			response: `The extracted data is {"price": 42.5, "tags": ["a", "b"]} as requested.`,
			expected: `{"price": 42.5, "tags": ["a", "b"]}`,
		},
		{
			name:     "nested braces",
			response: `{"outer": {"inner": [{"k": "v"}]}}`,
			expected: `{"outer": {"inner": [{"k": "v"}]}}`,
		},
		{
			name:     "braces inside strings",
			response: `{"text": "curly } brace"}`,
			expected: `{"text": "curly } brace"}`,
		},
		{
			name:     "python code block is skipped",
			response: "```python\nprint('hi')\n```\n{\"ok\": true}",
			expected: `{"ok": true}`,
		},
		{
			name:     "no json at all",
			response: "Sorry, I could not extract anything.",
			wantErr:  true,
		},
		{
			name:     "unbalanced json",
			response: `{"broken": `,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	value, err := DecodeJSON("```json\n{\"count\": 3}\n```")
	require.NoError(t, err)

	m, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(3), m["count"])
}
