package patterns

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"famcoord/internal/ledger"
	"famcoord/internal/model"
	"famcoord/pkg/metrics"
)

const (
	// maxWindowEmails caps how many analyzed emails one discovery run reads.
	maxWindowEmails = 200
	// themeMembershipMin is the confidence floor for an email to join a
	// theme's group. Emails may join several groups.
	themeMembershipMin = 0.3
	// minGroupSize is the occurrence floor below which a theme group is
	// not considered a pattern candidate.
	minGroupSize = 3
	// characterizeSampleSize caps the emails fed to the characterization call.
	characterizeSampleSize = 10
	// keepConfidenceMin filters weak characterizations; fallback patterns
	// are exempt.
	keepConfidenceMin = 0.5
	// fallbackConfidence is the fixed score of a generic fallback pattern.
	fallbackConfidence = 0.3

	costCharacterizeCents = 0.2
)

// Completer is the single model capability discovery needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmailSource reads analyzed emails back out of the datastore.
type EmailSource interface {
	ListSince(ctx context.Context, accountID int, since time.Time, limit int) ([]*model.AnalyzedEmail, error)
}

// PatternStore persists a discovery run's result as a snapshot replace.
type PatternStore interface {
	ReplaceForAccount(ctx context.Context, userID, accountID int, patterns []*model.FamilyPattern) error
}

// DiscoveryResult is one run's patterns plus its cost accounting.
type DiscoveryResult struct {
	Patterns       []*model.FamilyPattern `json:"patterns"`
	EmailsAnalyzed int                    `json:"emails_analyzed"`
	ModelCalls     int                    `json:"model_calls"`
	CostCents      float64                `json:"cost_cents"`
}

// Engine mines analyzed emails for recurring coordination patterns. Each run
// replaces the account's whole pattern set; concurrent runs for one account
// must be serialized by the caller.
type Engine struct {
	emails    EmailSource
	patterns  PatternStore
	completer Completer
	ledger    *ledger.Ledger
	logger    *zap.Logger
}

func NewEngine(emails EmailSource, patterns PatternStore, completer Completer, led *ledger.Ledger, logger *zap.Logger) *Engine {
	return &Engine{
		emails:    emails,
		patterns:  patterns,
		completer: completer,
		ledger:    led,
		logger:    logger,
	}
}

// Discover groups the account's recent analyzed emails by theme, computes
// temporal statistics per group, characterizes each qualifying group, and
// persists the surviving patterns as the account's new pattern set.
func (e *Engine) Discover(ctx context.Context, userID, accountID, lookbackDays int) (*DiscoveryResult, error) {
	start := time.Now()
	since := time.Now().AddDate(0, 0, -lookbackDays)

	emails, err := e.emails.ListSince(ctx, accountID, since, maxWindowEmails)
	if err != nil {
		e.ledger.Performance(ctx, "pattern_discovery", time.Since(start), false)
		return nil, fmt.Errorf("failed to load analyzed emails: %w", err)
	}
	if len(emails) == 0 {
		e.ledger.Event(ctx, model.LevelWarn, "pattern_discovery", "no analyzed emails in window", nil, map[string]string{
			"account_id":    fmt.Sprintf("%d", accountID),
			"lookback_days": fmt.Sprintf("%d", lookbackDays),
		})
		return &DiscoveryResult{Patterns: []*model.FamilyPattern{}}, fmt.Errorf("no analyzed emails within %d days", lookbackDays)
	}

	groups := groupByTheme(emails)

	result := &DiscoveryResult{
		Patterns:       []*model.FamilyPattern{},
		EmailsAnalyzed: len(emails),
	}

	// stable theme order keeps runs on identical input comparable
	themes := make([]string, 0, len(groups))
	for theme := range groups {
		themes = append(themes, theme)
	}
	sort.Strings(themes)

	for _, theme := range themes {
		group := groups[theme]
		if len(group) < minGroupSize {
			continue
		}

		times := make([]time.Time, 0, len(group))
		for _, em := range group {
			times = append(times, em.SentDate)
		}
		stats := computeTemporalStats(times)

		pattern, fellBack := e.characterize(ctx, userID, accountID, theme, group, stats)
		result.ModelCalls++
		result.CostCents += costCharacterizeCents

		if !fellBack && pattern.ConfidenceScore < keepConfidenceMin {
			e.logger.Debug("Dropping low-confidence pattern",
				zap.String("theme", theme),
				zap.Float64("confidence", pattern.ConfidenceScore),
			)
			continue
		}

		metrics.IncrementPatternsDiscovered(fellBack)
		result.Patterns = append(result.Patterns, pattern)
	}

	if err := e.patterns.ReplaceForAccount(ctx, userID, accountID, result.Patterns); err != nil {
		e.ledger.Performance(ctx, "pattern_discovery", time.Since(start), false)
		return nil, fmt.Errorf("failed to persist patterns: %w", err)
	}

	e.ledger.Performance(ctx, "pattern_discovery", time.Since(start), true)
	e.ledger.CostUsage(ctx, "pattern_discovery", result.CostCents)
	e.ledger.Event(ctx, model.LevelInfo, "pattern_discovery", "discovery completed", nil, map[string]string{
		"account_id":      fmt.Sprintf("%d", accountID),
		"emails_analyzed": fmt.Sprintf("%d", result.EmailsAnalyzed),
		"patterns":        fmt.Sprintf("%d", len(result.Patterns)),
	})

	return result, nil
}

// groupByTheme buckets emails under every theme they carry with confidence at
// or above the membership floor.
func groupByTheme(emails []*model.AnalyzedEmail) map[string][]*model.AnalyzedEmail {
	groups := map[string][]*model.AnalyzedEmail{}
	for _, em := range emails {
		for theme, score := range em.Themes {
			if score.Confidence >= themeMembershipMin {
				groups[theme] = append(groups[theme], em)
			}
		}
	}
	return groups
}
