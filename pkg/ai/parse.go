package ai

import (
	"encoding/json"
	"strings"
)

// StripFences removes a single Markdown code-fence wrapper from model output.
// Models asked for "JSON only" still wrap the document in ```json fences
// often enough that both generation and grading share this cleanup.
func StripFences(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```json")
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	return strings.TrimSpace(s)
}

// decodeJSON strips fences and unmarshals into v, converting any decode
// failure into a ValidationError so callers fail closed uniformly.
func decodeJSON(content string, v interface{}) error {
	if err := json.Unmarshal([]byte(StripFences(content)), v); err != nil {
		return &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}
