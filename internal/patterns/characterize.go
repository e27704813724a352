package patterns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"famcoord/internal/llm"
	"famcoord/internal/model"
)

const characterizePromptTemplate = `You analyze recurring family coordination patterns found in email.
Theme: %s
Emails in group: %d
Typical weekdays: %s
Typical hours: %v
Mean days between emails: %.1f

Sample emails (subject | sender | summary):
%s

Return ONLY JSON:
{"pattern_name": string, "confidence_score": 0..1, "frequency": one of [daily, weekly, monthly, seasonal, ad-hoc], "trend_direction": one of [increasing, decreasing, stable], "key_characteristics": [strings], "coordination_requirements": [strings], "suggested_automations": [strings], "stakeholders": [strings], "seasonal_factors": [strings]}`

type characterizeWire struct {
	PatternName              string   `json:"pattern_name"`
	ConfidenceScore          float64  `json:"confidence_score"`
	Frequency                string   `json:"frequency"`
	TrendDirection           string   `json:"trend_direction"`
	KeyCharacteristics       []string `json:"key_characteristics"`
	CoordinationRequirements []string `json:"coordination_requirements"`
	SuggestedAutomations     []string `json:"suggested_automations"`
	Stakeholders             []string `json:"stakeholders"`
	SeasonalFactors          []string `json:"seasonal_factors"`
}

// characterize runs the model over a capped sample of the group and its
// temporal stats. A failed call or unusable output yields the generic
// fallback pattern instead of dropping the theme.
func (e *Engine) characterize(ctx context.Context, userID, accountID int, theme string, group []*model.AnalyzedEmail, stats temporalStats) (*model.FamilyPattern, bool) {
	sample := group
	if len(sample) > characterizeSampleSize {
		sample = sample[:characterizeSampleSize]
	}

	var sb strings.Builder
	for _, em := range sample {
		fmt.Fprintf(&sb, "- %s | %s | %s\n", em.Subject, em.SenderEmail, em.ContentSummary)
	}

	prompt := fmt.Sprintf(characterizePromptTemplate,
		theme, stats.Count,
		strings.Join(weekdayNames(stats.WeekdayModes), ", "),
		stats.HourModes, stats.MeanGapDays, sb.String(),
	)

	start := time.Now()
	text, err := e.completer.Complete(ctx, prompt)
	e.ledger.Performance(ctx, "pattern_characterize", time.Since(start), err == nil)
	if err != nil {
		return e.fallbackPattern(ctx, userID, accountID, theme, group, stats, "model call failed: "+err.Error()), true
	}

	var wire characterizeWire
	if err := llm.ExtractJSON(text, &wire); err != nil {
		return e.fallbackPattern(ctx, userID, accountID, theme, group, stats, "unparseable output: "+err.Error()), true
	}
	if wire.PatternName == "" {
		wire.PatternName = theme + " coordination"
	}
	if !validFrequency(wire.Frequency) {
		wire.Frequency = frequencyFromGap(stats.MeanGapDays, stats.Count)
	}
	if !validTrend(wire.TrendDirection) {
		wire.TrendDirection = model.TrendStable
	}

	now := time.Now()
	return &model.FamilyPattern{
		ID:                       uuid.NewString(),
		UserID:                   userID,
		AccountID:                accountID,
		PatternType:              theme,
		PatternName:              wire.PatternName,
		ConfidenceScore:          llm.ClampScore(wire.ConfidenceScore),
		Frequency:                wire.Frequency,
		TrendDirection:           wire.TrendDirection,
		SupportingEmailIDs:       supportingIDs(group),
		KeyCharacteristics:       wire.KeyCharacteristics,
		CoordinationRequirements: wire.CoordinationRequirements,
		SuggestedAutomations:     wire.SuggestedAutomations,
		Stakeholders:             wire.Stakeholders,
		SeasonalFactors:          wire.SeasonalFactors,
		FirstDetected:            stats.First,
		LastUpdated:              now,
	}, false
}

// fallbackPattern builds a low-confidence generic pattern for a theme whose
// characterization failed. It is kept regardless of the confidence filter so
// the theme signals "insufficient evidence" instead of vanishing.
func (e *Engine) fallbackPattern(ctx context.Context, userID, accountID int, theme string, group []*model.AnalyzedEmail, stats temporalStats, reason string) *model.FamilyPattern {
	e.ledger.Event(ctx, model.LevelWarn, "pattern_characterize",
		"characterization fell back to generic pattern", nil, map[string]string{
			"theme":  theme,
			"reason": reason,
		})

	now := time.Now()
	return &model.FamilyPattern{
		ID:              uuid.NewString(),
		UserID:          userID,
		AccountID:       accountID,
		PatternType:     theme,
		PatternName:     fmt.Sprintf("Recurring %s emails", theme),
		ConfidenceScore: fallbackConfidence,
		Frequency:       frequencyFromGap(stats.MeanGapDays, stats.Count),
		TrendDirection:  model.TrendStable,
		KeyCharacteristics: []string{
			fmt.Sprintf("%d emails in window", stats.Count),
			fmt.Sprintf("typically on %s", strings.Join(weekdayNames(stats.WeekdayModes), ", ")),
		},
		SupportingEmailIDs: supportingIDs(group),
		Fallback:           true,
		FirstDetected:      stats.First,
		LastUpdated:        now,
	}
}

func supportingIDs(group []*model.AnalyzedEmail) []string {
	n := len(group)
	if n > model.MaxSupportingEmails {
		n = model.MaxSupportingEmails
	}
	ids := make([]string, 0, n)
	for _, em := range group[:n] {
		ids = append(ids, em.MessageID)
	}
	return ids
}

func validFrequency(f string) bool {
	switch f {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly, model.FrequencySeasonal, model.FrequencyAdHoc:
		return true
	}
	return false
}

func validTrend(t string) bool {
	switch t {
	case model.TrendIncreasing, model.TrendDecreasing, model.TrendStable:
		return true
	}
	return false
}
