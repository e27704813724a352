package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls the first JSON object out of a completion. Models wrap
// output in code fences or prepend prose often enough that a strict unmarshal
// of the raw text fails on otherwise usable responses.
func ExtractJSON(text string, out any) error {
	cleaned := strings.TrimSpace(text)

	// strip markdown code fences
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	// fall back to the outermost brace pair
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object found in completion")
	}

	if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err != nil {
		return fmt.Errorf("failed to parse completion JSON: %w", err)
	}
	return nil
}

// ClampScore bounds a model-reported score to [0,1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
