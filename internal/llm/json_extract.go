package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/scrapeflow-ai/scrapeflow/internal/types"
)

// codeBlockPattern matches markdown code blocks with optional language tag.
var codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// ExtractJSON extracts a JSON document from an LLM reply that may be wrapped
// in prose or a markdown code fence. Lookup order: fenced ```json blocks,
// then the first balanced {...} or [...] in the raw text.
func ExtractJSON(response string) (string, error) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if isValidJSON(content) {
			return content, nil
		}
	}

	if doc, ok := extractBalanced(response); ok {
		return doc, nil
	}

	return "", types.NewError(ErrResponseParseFailed, "no valid JSON found in response")
}

// DecodeJSON extracts and unmarshals a JSON document from an LLM reply.
func DecodeJSON(response string) (any, error) {
	doc, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal([]byte(doc), &value); err != nil {
		return nil, types.WrapError(ErrResponseParseFailed, "failed to decode JSON", err)
	}
	return value, nil
}

// extractBalanced finds the first balanced JSON object or array in free text.
func extractBalanced(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				doc := s[start : i+1]
				if isValidJSON(doc) {
					return doc, true
				}
				return "", false
			}
		}
	}
	return "", false
}

func isValidJSON(s string) bool {
	return json.Valid([]byte(s))
}
