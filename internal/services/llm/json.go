package llm

import (
	"encoding/json"
	"strings"
)

// stripCodeFence removes a leading ```json / ``` fence line and a trailing ```
func stripCodeFence(content string) string {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// ParseJSONObject decodes an LLM reply into a JSON object. Only a non-empty
// object counts: arrays, scalars, empty objects and invalid JSON return nil.
func ParseJSONObject(content string) map[string]any {
	text := stripCodeFence(content)
	if text == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil
	}
	if len(parsed) == 0 {
		return nil
	}
	return parsed
}
