package pipeline

import (
	"context"
	"fmt"
	"strings"

	"famcoord/internal/llm"
	"famcoord/internal/model"
)

type priorityResult struct {
	Score   float64
	Urgency string
}

type priorityWire struct {
	PriorityScore float64 `json:"priority_score"`
	UrgencyLevel  string  `json:"urgency_level"`
}

const priorityPromptTemplate = `You score how urgent and important a family email is for coordination.
Primary theme: %s. Theme confidence: %.2f.
Return ONLY JSON: {"priority_score": 0..1, "urgency_level": "low"|"medium"|"high"}.

Subject: %s
From: %s
Summary: %s`

// analyzePriority scores urgency/importance given the theme output. The
// fallback derives a constant base from the sender domain, urgent-word
// presence, and the primary theme's rule weight.
func (p *Pipeline) analyzePriority(ctx context.Context, email model.RawEmail, content contentResult, themes themeResult) (priorityResult, StageOutcome) {
	primaryConf := themes.Themes[themes.Primary].Confidence
	prompt := fmt.Sprintf(priorityPromptTemplate, themes.Primary, primaryConf,
		email.Subject, email.SenderEmail, content.Summary)

	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return p.priorityFallback(email, themes, "model call failed: "+err.Error())
	}

	var wire priorityWire
	if err := llm.ExtractJSON(text, &wire); err != nil {
		return p.priorityFallback(email, themes, "unparseable output: "+err.Error())
	}

	score := llm.ClampScore(wire.PriorityScore)
	urgency := strings.ToLower(wire.UrgencyLevel)
	switch urgency {
	case model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh:
	default:
		urgency = model.UrgencyFromScore(score)
	}

	return priorityResult{Score: score, Urgency: urgency},
		StageOutcome{Stage: StagePriority, Source: SourceModel}
}

func (p *Pipeline) priorityFallback(email model.RawEmail, themes themeResult, reason string) (priorityResult, StageOutcome) {
	score := 0.3

	if rule, ok := themeRules[themes.Primary]; ok {
		score = rule.Weight * 0.5
	}
	if hasUrgentWord(email.Subject, email.Body) {
		score += 0.3
	}
	// mail from a person rather than an org domain tends to need a reply
	if sender := strings.ToLower(email.SenderEmail); strings.HasSuffix(sender, "@gmail.com") ||
		strings.HasSuffix(sender, "@outlook.com") || strings.HasSuffix(sender, "@yahoo.com") {
		score += 0.1
	}

	score = llm.ClampScore(score)
	return priorityResult{Score: score, Urgency: model.UrgencyFromScore(score)},
		StageOutcome{Stage: StagePriority, Source: SourceFallback, Reason: reason}
}
