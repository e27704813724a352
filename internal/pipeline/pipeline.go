package pipeline

import (
	"context"
	"time"

	"famcoord/internal/ledger"
	"famcoord/internal/model"
	"famcoord/pkg/metrics"
)

// Caps on list-valued analysis fields.
const (
	maxKeywords        = 10
	maxSecondaryThemes = 5
	maxEvidence        = 3
)

// Completer is the slice of the model service the analysis stages need.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Embedder produces fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingModel() string
}

// Pipeline runs the five-stage analysis chain over one email:
// content -> themes -> priority -> actions -> embedding. The four analysis
// stages are total (they fall back to heuristics rather than failing); only
// the embedding stage can fail the email.
type Pipeline struct {
	completer Completer
	embedder  Embedder
	ledger    *ledger.Ledger
}

func New(completer Completer, embedder Embedder, led *ledger.Ledger) *Pipeline {
	return &Pipeline{
		completer: completer,
		embedder:  embedder,
		ledger:    led,
	}
}

// Result is one email's analysis plus how each stage resolved.
type Result struct {
	Email    *model.AnalyzedEmail
	Outcomes []StageOutcome
}

// Analyze runs the full chain. Given any well-formed RawEmail it returns a
// best-effort AnalyzedEmail unless embedding generation fails.
func (p *Pipeline) Analyze(ctx context.Context, email model.RawEmail) (*Result, error) {
	start := time.Now()
	var outcomes []StageOutcome
	llmCalls := 0
	costCents := 0.0

	runStage := func(outcome StageOutcome, cents float64) {
		outcomes = append(outcomes, outcome)
		llmCalls++
		costCents += cents
		if outcome.Source == SourceFallback {
			metrics.IncrementStageFallback(outcome.Stage)
			p.ledger.Event(ctx, model.LevelWarn, "stage_fallback",
				"stage fell back to heuristics", nil, map[string]string{
					"stage":      outcome.Stage,
					"message_id": email.MessageID,
					"reason":     outcome.Reason,
				})
		}
	}

	contentStart := time.Now()
	content, outcome := p.analyzeContent(ctx, email)
	runStage(outcome, costContentCents)
	p.ledger.Performance(ctx, StageContent, time.Since(contentStart), true)
	metrics.RecordStageLatency(StageContent, string(outcome.Source), time.Since(contentStart))

	themeStart := time.Now()
	themes, outcome := p.analyzeThemes(ctx, email, content)
	runStage(outcome, costThemeCents)
	p.ledger.Performance(ctx, StageTheme, time.Since(themeStart), true)
	metrics.RecordStageLatency(StageTheme, string(outcome.Source), time.Since(themeStart))

	priorityStart := time.Now()
	priority, outcome := p.analyzePriority(ctx, email, content, themes)
	runStage(outcome, costPriorityCents)
	p.ledger.Performance(ctx, StagePriority, time.Since(priorityStart), true)
	metrics.RecordStageLatency(StagePriority, string(outcome.Source), time.Since(priorityStart))

	actionStart := time.Now()
	actions, outcome := p.extractActions(ctx, email, content, themes, priority)
	runStage(outcome, costActionCents)
	p.ledger.Performance(ctx, StageAction, time.Since(actionStart), true)
	metrics.RecordStageLatency(StageAction, string(outcome.Source), time.Since(actionStart))

	embedStart := time.Now()
	embedding, err := p.generateEmbedding(ctx, content.Summary)
	costCents += costEmbeddingCents
	if err != nil {
		p.ledger.Performance(ctx, StageEmbedding, time.Since(embedStart), false)
		p.ledger.Event(ctx, model.LevelError, "embedding_failure",
			"embedding stage failed, dropping email", err, map[string]string{
				"message_id": email.MessageID,
			})
		return nil, err
	}
	p.ledger.Performance(ctx, StageEmbedding, time.Since(embedStart), true)
	metrics.RecordStageLatency(StageEmbedding, "model", time.Since(embedStart))

	analyzed := &model.AnalyzedEmail{
		MessageID:       email.MessageID,
		ThreadID:        email.ThreadID,
		Subject:         email.Subject,
		SenderEmail:     email.SenderEmail,
		SentDate:        email.SentDate,
		ContentSummary:  content.Summary,
		Language:        content.Language,
		Themes:          themes.Themes,
		PrimaryTheme:    themes.Primary,
		SecondaryThemes: dedupeCap(themes.Secondary, maxSecondaryThemes),
		PriorityScore:   priority.Score,
		UrgencyLevel:    priority.Urgency,
		ActionItems:     actions.Items,
		Keywords:        dedupeCap(content.Keywords, maxKeywords),
		Embedding:       embedding,
		EmbeddingModel:  p.embedder.EmbeddingModel(),
		CostCents:       costCents,
		LLMCalls:        llmCalls,
	}

	p.ledger.Performance(ctx, "email_pipeline", time.Since(start), true)
	p.ledger.CostUsage(ctx, "email_pipeline", costCents)

	return &Result{Email: analyzed, Outcomes: outcomes}, nil
}

// dedupeCap removes duplicates preserving order and caps the length.
func dedupeCap(items []string, capAt int) []string {
	if len(items) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it == "" || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
		if len(out) >= capAt {
			break
		}
	}
	return out
}
