package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"famcoord/internal/llm"
	"famcoord/internal/model"
)

type themeResult struct {
	Themes    map[string]model.ThemeScore
	Primary   string
	Secondary []string
}

type themeWire struct {
	Themes map[string]struct {
		Confidence  float64  `json:"confidence"`
		Evidence    []string `json:"evidence"`
		Subcategory string   `json:"subcategory"`
	} `json:"themes"`
}

const themePromptTemplate = `You classify family emails into coordination themes.
Allowed themes: %s.
Given the email summary below, return ONLY JSON:
{"themes": {"<theme>": {"confidence": 0..1, "evidence": [short quotes], "subcategory": optional string}}}.
Include only themes that actually apply.

Subject: %s
Summary: %s`

// analyzeThemes classifies the summarized email into coordination themes.
// The fallback scores themes from the shared keyword rules table.
func (p *Pipeline) analyzeThemes(ctx context.Context, email model.RawEmail, content contentResult) (themeResult, StageOutcome) {
	prompt := fmt.Sprintf(themePromptTemplate, strings.Join(themeNames(), ", "), email.Subject, content.Summary)

	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		return p.themeFallback(email, "model call failed: "+err.Error())
	}

	var wire themeWire
	if err := llm.ExtractJSON(text, &wire); err != nil {
		return p.themeFallback(email, "unparseable output: "+err.Error())
	}
	if len(wire.Themes) == 0 {
		return p.themeFallback(email, "no themes returned")
	}

	themes := map[string]model.ThemeScore{}
	for name, t := range wire.Themes {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		themes[name] = model.ThemeScore{
			Confidence:  llm.ClampScore(t.Confidence),
			Evidence:    dedupeCap(t.Evidence, maxEvidence),
			Subcategory: t.Subcategory,
		}
	}
	if len(themes) == 0 {
		return p.themeFallback(email, "no usable themes")
	}

	primary, secondary := rankThemes(themes)
	return themeResult{Themes: themes, Primary: primary, Secondary: secondary},
		StageOutcome{Stage: StageTheme, Source: SourceModel}
}

func (p *Pipeline) themeFallback(email model.RawEmail, reason string) (themeResult, StageOutcome) {
	scores := matchThemes(email.Subject, email.Body)

	themes := map[string]model.ThemeScore{}
	for name, conf := range scores {
		themes[name] = model.ThemeScore{Confidence: conf}
	}
	if len(themes) == 0 {
		// nothing matched; tag as general so downstream stages still have
		// a primary theme to work with
		themes["general"] = model.ThemeScore{Confidence: 0.2}
	}

	primary, secondary := rankThemes(themes)
	return themeResult{Themes: themes, Primary: primary, Secondary: secondary},
		StageOutcome{Stage: StageTheme, Source: SourceFallback, Reason: reason}
}

// rankThemes picks the highest-confidence theme as primary and returns the
// rest, strongest first, capped.
func rankThemes(themes map[string]model.ThemeScore) (string, []string) {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if themes[names[i]].Confidence != themes[names[j]].Confidence {
			return themes[names[i]].Confidence > themes[names[j]].Confidence
		}
		return names[i] < names[j]
	})

	secondary := names[1:]
	if len(secondary) > maxSecondaryThemes {
		secondary = secondary[:maxSecondaryThemes]
	}
	return names[0], secondary
}

func themeNames() []string {
	names := make([]string, 0, len(themeRules))
	for name := range themeRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
