package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parseTarget struct {
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare object", `{"summary": "ok", "score": 0.5}`},
		{"json code fence", "```json\n{\"summary\": \"ok\", \"score\": 0.5}\n```"},
		{"plain code fence", "```\n{\"summary\": \"ok\", \"score\": 0.5}\n```"},
		{"leading prose", `Sure! Here is the JSON you asked for: {"summary": "ok", "score": 0.5}`},
		{"trailing prose", `{"summary": "ok", "score": 0.5} Let me know if you need anything else.`},
		{"surrounding whitespace", "\n\n  {\"summary\": \"ok\", \"score\": 0.5}  \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out parseTarget
			require.NoError(t, ExtractJSON(tt.input, &out))
			assert.Equal(t, "ok", out.Summary)
			assert.Equal(t, 0.5, out.Score)
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no json at all", "I could not produce structured output."},
		{"unbalanced braces", `{"summary": "ok"`},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out parseTarget
			assert.Error(t, ExtractJSON(tt.input, &out))
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.3))
	assert.Equal(t, 0.0, ClampScore(0))
	assert.Equal(t, 0.42, ClampScore(0.42))
	assert.Equal(t, 1.0, ClampScore(1.7))
}
