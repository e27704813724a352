package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"famcoord/internal/ledger"
	"famcoord/internal/model"
)

type fakeCompleter struct {
	// responses keyed by a substring of the prompt; "" matches everything
	responses map[string]string
	err       error
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	for key, resp := range f.responses {
		if key != "" && strings.Contains(prompt, key) {
			return resp, nil
		}
	}
	if resp, ok := f.responses[""]; ok {
		return resp, nil
	}
	return "", errors.New("no canned response")
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbeddingModel() string { return "test-embedding" }

func newTestPipeline(c Completer, e Embedder) *Pipeline {
	return New(c, e, ledger.New(zap.NewNop(), nil, nil))
}

func sampleEmail() model.RawEmail {
	return model.RawEmail{
		MessageID:   "msg-1",
		Subject:     "Field trip permission slip due Friday",
		SenderEmail: "teacher@school.example.org",
		SentDate:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Body:        "Please sign and return the permission slip for the field trip by Friday. The deadline is firm.",
	}
}

func TestAnalyzeAllStagesFallBack(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model service 5xx: 503")}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	p := newTestPipeline(completer, embedder)

	res, err := p.Analyze(context.Background(), sampleEmail())
	require.NoError(t, err, "analysis stages must be total even when every model call fails")
	require.NotNil(t, res.Email)

	require.Len(t, res.Outcomes, 4)
	for _, o := range res.Outcomes {
		assert.Equal(t, SourceFallback, o.Source, "stage %s", o.Stage)
		assert.NotEmpty(t, o.Reason)
	}

	// school keywords in the text drive the heuristic theme
	assert.Equal(t, "school", res.Email.PrimaryTheme)
	assert.NotEmpty(t, res.Email.ContentSummary)
	assert.Equal(t, []float32{0.1, 0.2}, res.Email.Embedding)
	assert.Equal(t, "test-embedding", res.Email.EmbeddingModel)
	assert.GreaterOrEqual(t, res.Email.PriorityScore, 0.0)
	assert.LessOrEqual(t, res.Email.PriorityScore, 1.0)
}

func TestAnalyzeCostAccounting(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model service error: 400")}
	embedder := &fakeEmbedder{vec: []float32{1}}
	p := newTestPipeline(completer, embedder)

	res, err := p.Analyze(context.Background(), sampleEmail())
	require.NoError(t, err)

	// four analysis calls plus one embedding call
	assert.Equal(t, 4, res.Email.LLMCalls)
	assert.InDelta(t, 4*0.2+0.01, res.Email.CostCents, 1e-9)
}

func TestAnalyzeEmbeddingFailureFailsEmail(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("model down")}
	embedder := &fakeEmbedder{err: errors.New("embed service down")}
	p := newTestPipeline(completer, embedder)

	res, err := p.Analyze(context.Background(), sampleEmail())
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestAnalyzeModelPathClampsAndCaps(t *testing.T) {
	actions := `{"actionable_items": [`
	for i := 0; i < 8; i++ {
		if i > 0 {
			actions += ","
		}
		actions += fmt.Sprintf(`{"action": "task %d", "priority": "HIGH", "category": "", "due_date": "2026-03-06"}`, i)
	}
	actions += `]}`

	completer := &fakeCompleter{responses: map[string]string{
		"summarizes family emails": `{"summary": "Sign the slip.", "language": "en", "keywords": ["slip", "slip", "trip", "a", "b", "c", "d", "e", "f", "g", "h", "i"]}`,
		"coordination themes":      `{"themes": {"school": {"confidence": 1.7, "evidence": ["slip"]}, "logistics": {"confidence": 0.4}}}`,
		"score how urgent":         `{"priority_score": 2.5, "urgency_level": "bogus"}`,
		"extract actionable":       actions,
	}}
	p := newTestPipeline(completer, &fakeEmbedder{vec: []float32{0.5}})

	res, err := p.Analyze(context.Background(), sampleEmail())
	require.NoError(t, err)

	for _, o := range res.Outcomes {
		assert.Equal(t, SourceModel, o.Source, "stage %s", o.Stage)
	}

	// out-of-range scores clamp to [0,1]
	assert.Equal(t, 1.0, res.Email.Themes["school"].Confidence)
	assert.Equal(t, 1.0, res.Email.PriorityScore)
	// invalid urgency falls back to the score mapping
	assert.Equal(t, model.UrgencyHigh, res.Email.UrgencyLevel)

	assert.Len(t, res.Email.ActionItems, model.MaxActionItems)
	for _, item := range res.Email.ActionItems {
		assert.Equal(t, "high", item.Priority)
		assert.Equal(t, "school", item.Category, "empty category defaults to the primary theme")
		require.NotNil(t, item.DueDate)
		assert.Equal(t, time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC), *item.DueDate)
	}

	assert.LessOrEqual(t, len(res.Email.Keywords), 10)
	assert.Equal(t, "school", res.Email.PrimaryTheme)
	assert.Equal(t, []string{"logistics"}, res.Email.SecondaryThemes)
}

func TestUrgencyFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, model.UrgencyLow},
		{0.39, model.UrgencyLow},
		{0.4, model.UrgencyMedium},
		{0.69, model.UrgencyMedium},
		{0.7, model.UrgencyHigh},
		{1.0, model.UrgencyHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, model.UrgencyFromScore(tt.score), "score %v", tt.score)
	}
}
