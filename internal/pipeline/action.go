package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"famcoord/internal/llm"
	"famcoord/internal/model"
)

type actionResult struct {
	Items []model.ActionItem
}

type actionWire struct {
	Items []struct {
		Action   string `json:"action"`
		Priority string `json:"priority"`
		Category string `json:"category"`
		DueDate  string `json:"due_date"`
		Assignee string `json:"assignee"`
	} `json:"actionable_items"`
}

const actionPromptTemplate = `You extract actionable items for a family from an email.
Primary theme: %s. Urgency: %s.
Return ONLY JSON: {"actionable_items": [{"action": string, "priority": "low"|"medium"|"high", "category": string, "due_date": "YYYY-MM-DD" or "", "assignee": string or ""}]}.
At most %d items. Return an empty list if nothing needs doing.

Subject: %s
Summary: %s`

// extractActions pulls actionable items given the priority output. The
// fallback emits at most one generic review item for urgent mail.
func (p *Pipeline) extractActions(ctx context.Context, email model.RawEmail, content contentResult, themes themeResult, priority priorityResult) (actionResult, StageOutcome) {
	prompt := fmt.Sprintf(actionPromptTemplate, themes.Primary, priority.Urgency,
		model.MaxActionItems, email.Subject, content.Summary)

	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return p.actionFallback(email, themes, priority, "model call failed: "+err.Error())
	}

	var wire actionWire
	if err := llm.ExtractJSON(text, &wire); err != nil {
		return p.actionFallback(email, themes, priority, "unparseable output: "+err.Error())
	}

	items := make([]model.ActionItem, 0, len(wire.Items))
	for _, it := range wire.Items {
		action := strings.TrimSpace(it.Action)
		if action == "" {
			continue
		}

		item := model.ActionItem{
			Action:   action,
			Priority: normalizePriority(it.Priority, priority.Urgency),
			Category: strings.ToLower(strings.TrimSpace(it.Category)),
			Assignee: strings.TrimSpace(it.Assignee),
		}
		if item.Category == "" {
			item.Category = themes.Primary
		}
		if due, err := time.Parse("2006-01-02", it.DueDate); err == nil {
			item.DueDate = &due
		}

		items = append(items, item)
		if len(items) >= model.MaxActionItems {
			break
		}
	}

	return actionResult{Items: items},
		StageOutcome{Stage: StageAction, Source: SourceModel}
}

func (p *Pipeline) actionFallback(email model.RawEmail, themes themeResult, priority priorityResult, reason string) (actionResult, StageOutcome) {
	var items []model.ActionItem

	// only urgent mail earns a heuristic action; everything else would just
	// be noise in the family's task list
	if priority.Urgency == model.UrgencyHigh || hasUrgentWord(email.Subject, email.Body) {
		items = append(items, model.ActionItem{
			Action:   "Review email: " + email.Subject,
			Priority: priority.Urgency,
			Category: themes.Primary,
		})
	}

	return actionResult{Items: items},
		StageOutcome{Stage: StageAction, Source: SourceFallback, Reason: reason}
}

func normalizePriority(p, fallback string) string {
	switch strings.ToLower(p) {
	case model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh:
		return strings.ToLower(p)
	}
	return fallback
}
