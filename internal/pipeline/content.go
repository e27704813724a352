package pipeline

import (
	"context"
	"fmt"
	"strings"

	"famcoord/internal/llm"
	"famcoord/internal/model"
)

type contentResult struct {
	Summary  string
	Language string
	Keywords []string
}

type contentWire struct {
	Summary  string   `json:"summary"`
	Language string   `json:"language"`
	Keywords []string `json:"keywords"`
}

const contentPromptTemplate = `You are an assistant that summarizes family emails for a coordination dashboard.
Summarize the email below in 2-3 sentences focused on what the family needs to know or do.
Return ONLY JSON: {"summary": string, "language": two-letter code, "keywords": up to %d short strings}.

Subject: %s
From: %s
Body:
%s`

// analyzeContent cleans and summarizes the raw email text. On model failure
// it falls back to a truncated body excerpt with rule-table keywords.
func (p *Pipeline) analyzeContent(ctx context.Context, email model.RawEmail) (contentResult, StageOutcome) {
	prompt := fmt.Sprintf(contentPromptTemplate, maxKeywords, email.Subject, email.SenderEmail, truncate(email.Body, 4000))

	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return p.contentFallback(email, "model call failed: "+err.Error())
	}

	var wire contentWire
	if err := llm.ExtractJSON(text, &wire); err != nil {
		return p.contentFallback(email, "unparseable output: "+err.Error())
	}
	if strings.TrimSpace(wire.Summary) == "" {
		return p.contentFallback(email, "empty summary")
	}

	if wire.Language == "" {
		wire.Language = "en"
	}

	return contentResult{
		Summary:  strings.TrimSpace(wire.Summary),
		Language: wire.Language,
		Keywords: dedupeCap(wire.Keywords, maxKeywords),
	}, StageOutcome{Stage: StageContent, Source: SourceModel}
}

func (p *Pipeline) contentFallback(email model.RawEmail, reason string) (contentResult, StageOutcome) {
	summary := strings.TrimSpace(email.Body)
	summary = strings.Join(strings.Fields(summary), " ")
	summary = truncate(summary, 280)
	if summary == "" {
		summary = email.Subject
	}

	return contentResult{
			Summary:  summary,
			Language: "en",
			Keywords: matchedKeywords(email.Subject, email.Body, maxKeywords),
		}, StageOutcome{
			Stage:  StageContent,
			Source: SourceFallback,
			Reason: reason,
		}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
