package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"care-assistant/internal/common/validation"
)

var ErrInvalidJSON = errors.New("LLM_INVALID_JSON")

// ExtractJSON strips markdown fences and returns the outermost {...} object in text.
func ExtractJSON(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// DecodeJSON extracts the JSON object from text, validates it against schema when
// given, and unmarshals it into out.
func DecodeJSON(text string, schema *validation.Schema, out interface{}) error {
	raw, ok := ExtractJSON(text)
	if !ok {
		return fmt.Errorf("%w: no JSON object in output", ErrInvalidJSON)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if schema != nil {
		if err := schema.Validate(doc).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
