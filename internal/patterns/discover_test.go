package patterns

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"famcoord/internal/ledger"
	"famcoord/internal/model"
)

type fakeEmailSource struct {
	emails []*model.AnalyzedEmail
	err    error
}

func (f *fakeEmailSource) ListSince(context.Context, int, time.Time, int) ([]*model.AnalyzedEmail, error) {
	return f.emails, f.err
}

type fakePatternStore struct {
	replaced []*model.FamilyPattern
	calls    int
	err      error
}

func (f *fakePatternStore) ReplaceForAccount(_ context.Context, _, _ int, patterns []*model.FamilyPattern) error {
	f.calls++
	f.replaced = patterns
	return f.err
}

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func newTestEngine(src *fakeEmailSource, store *fakePatternStore, c Completer) *Engine {
	return NewEngine(src, store, c, ledger.New(zap.NewNop(), nil, nil), zap.NewNop())
}

// schoolEmails returns n emails tagged school on consecutive Mondays.
func schoolEmails(n int, confidence float64) []*model.AnalyzedEmail {
	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) // a Monday
	emails := make([]*model.AnalyzedEmail, 0, n)
	for i := 0; i < n; i++ {
		emails = append(emails, &model.AnalyzedEmail{
			MessageID:      fmt.Sprintf("school-%d", i),
			Subject:        "Newsletter",
			SenderEmail:    "teacher@school.org",
			SentDate:       monday.AddDate(0, 0, 7*i),
			ContentSummary: "Weekly school update.",
			Themes: map[string]model.ThemeScore{
				"school": {Confidence: confidence},
			},
			PrimaryTheme: "school",
		})
	}
	return emails
}

func TestDiscoverFallbackPatternKept(t *testing.T) {
	src := &fakeEmailSource{emails: schoolEmails(5, 0.8)}
	store := &fakePatternStore{}
	completer := &fakeCompleter{err: errors.New("model service 5xx: 503")}
	engine := newTestEngine(src, store, completer)

	res, err := engine.Discover(context.Background(), 1, 1, 90)
	require.NoError(t, err)

	// the characterization failure produces a low-confidence fallback
	// pattern rather than dropping the theme
	require.Len(t, res.Patterns, 1)
	p := res.Patterns[0]
	assert.Equal(t, "school", p.PatternType)
	assert.True(t, p.Fallback)
	assert.Less(t, p.ConfidenceScore, 0.5)
	assert.Equal(t, model.FrequencyWeekly, p.Frequency)
	assert.Len(t, p.SupportingEmailIDs, 5)

	assert.Equal(t, 5, res.EmailsAnalyzed)
	assert.Equal(t, 1, res.ModelCalls)
	assert.InDelta(t, 0.2, res.CostCents, 1e-9)
	assert.Equal(t, 1, store.calls)
}

func TestDiscoverConfidenceFilter(t *testing.T) {
	src := &fakeEmailSource{emails: schoolEmails(5, 0.8)}

	t.Run("low confidence dropped", func(t *testing.T) {
		store := &fakePatternStore{}
		completer := &fakeCompleter{response: `{"pattern_name": "School updates", "confidence_score": 0.4, "frequency": "weekly", "trend_direction": "stable"}`}
		engine := newTestEngine(src, store, completer)

		res, err := engine.Discover(context.Background(), 1, 1, 90)
		require.NoError(t, err)
		assert.Empty(t, res.Patterns)
		// the replace still runs so stale patterns are cleared
		assert.Equal(t, 1, store.calls)
	})

	t.Run("high confidence kept", func(t *testing.T) {
		store := &fakePatternStore{}
		completer := &fakeCompleter{response: `{"pattern_name": "School updates", "confidence_score": 0.85, "frequency": "weekly", "trend_direction": "stable", "stakeholders": ["parents"]}`}
		engine := newTestEngine(src, store, completer)

		res, err := engine.Discover(context.Background(), 1, 1, 90)
		require.NoError(t, err)
		require.Len(t, res.Patterns, 1)
		p := res.Patterns[0]
		assert.False(t, p.Fallback)
		assert.Equal(t, "School updates", p.PatternName)
		assert.InDelta(t, 0.85, p.ConfidenceScore, 1e-9)
		assert.Equal(t, []string{"parents"}, p.Stakeholders)
	})
}

func TestDiscoverGroupSizeFloor(t *testing.T) {
	src := &fakeEmailSource{emails: schoolEmails(2, 0.8)}
	store := &fakePatternStore{}
	completer := &fakeCompleter{response: `{"pattern_name": "x", "confidence_score": 0.9}`}
	engine := newTestEngine(src, store, completer)

	res, err := engine.Discover(context.Background(), 1, 1, 90)
	require.NoError(t, err)
	assert.Empty(t, res.Patterns)
	assert.Zero(t, completer.calls, "groups below the floor never reach the model")
}

func TestDiscoverMembershipThreshold(t *testing.T) {
	// confidence below 0.3 keeps emails out of the theme group
	src := &fakeEmailSource{emails: schoolEmails(5, 0.2)}
	store := &fakePatternStore{}
	engine := newTestEngine(src, store, &fakeCompleter{response: `{}`})

	res, err := engine.Discover(context.Background(), 1, 1, 90)
	require.NoError(t, err)
	assert.Empty(t, res.Patterns)
}

func TestDiscoverMultiThemeMembership(t *testing.T) {
	emails := schoolEmails(4, 0.8)
	for _, e := range emails {
		e.Themes["logistics"] = model.ThemeScore{Confidence: 0.5}
	}
	src := &fakeEmailSource{emails: emails}
	store := &fakePatternStore{}
	completer := &fakeCompleter{response: `{"pattern_name": "Recurring", "confidence_score": 0.9}`}
	engine := newTestEngine(src, store, completer)

	res, err := engine.Discover(context.Background(), 1, 1, 90)
	require.NoError(t, err)

	// one pattern per qualifying theme group
	require.Len(t, res.Patterns, 2)
	assert.Equal(t, 2, res.ModelCalls)
	types := []string{res.Patterns[0].PatternType, res.Patterns[1].PatternType}
	assert.ElementsMatch(t, []string{"logistics", "school"}, types)
}

func TestDiscoverNoEmails(t *testing.T) {
	src := &fakeEmailSource{}
	store := &fakePatternStore{}
	engine := newTestEngine(src, store, &fakeCompleter{})

	res, err := engine.Discover(context.Background(), 1, 1, 30)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.Patterns)
	assert.Zero(t, store.calls, "an empty window never wipes the existing snapshot")
}

func TestDiscoverIdempotentTypeNameMultiset(t *testing.T) {
	src := &fakeEmailSource{emails: schoolEmails(5, 0.8)}
	completer := &fakeCompleter{response: `{"pattern_name": "School updates", "confidence_score": 0.9, "frequency": "weekly", "trend_direction": "stable"}`}

	run := func() []*model.FamilyPattern {
		store := &fakePatternStore{}
		engine := newTestEngine(src, store, completer)
		res, err := engine.Discover(context.Background(), 1, 1, 90)
		require.NoError(t, err)
		return res.Patterns
	}

	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].PatternType, second[i].PatternType)
		assert.Equal(t, first[i].PatternName, second[i].PatternName)
		// ids are not stable across runs
		assert.NotEqual(t, first[i].ID, second[i].ID)
	}
}
