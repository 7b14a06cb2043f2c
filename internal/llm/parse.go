package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripFences removes a markdown code fence from generated text.
// Models regularly wrap JSON in ```json ... ``` despite being asked
// not to; the payload inside the first fence is returned verbatim.
func StripFences(text string) string {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
	} else if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+len("```"):]
	} else {
		return text
	}

	if end := strings.Index(text, "```"); end >= 0 {
		text = text[:end]
	}

	return strings.TrimSpace(text)
}

// ParseList decodes generated text as a JSON array of T. Generated
// text is untrusted input: any decode failure is returned to the
// caller, which substitutes its documented default.
func ParseList[T any](text string) ([]T, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("empty generation output")
	}

	var items []T
	if err := json.Unmarshal([]byte(cleaned), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generated list: %w", err)
	}

	return items, nil
}

// ParseObject decodes generated text as a single JSON object.
func ParseObject[T any](text string) (*T, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, fmt.Errorf("empty generation output")
	}

	var item T
	if err := json.Unmarshal([]byte(cleaned), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal generated object: %w", err)
	}

	return &item, nil
}
