package model

import "time"

// Pattern frequency values.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyMonthly  = "monthly"
	FrequencySeasonal = "seasonal"
	FrequencyAdHoc    = "ad-hoc"
)

// Trend directions.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// MaxSupportingEmails caps the supporting evidence list on a pattern.
const MaxSupportingEmails = 20

// FamilyPattern is one recurring coordination pattern mined from a cluster of
// same-theme emails. The whole set for a (user, account) is replaced on each
// discovery run; pattern identity is not stable across runs.
type FamilyPattern struct {
	ID                       string    `json:"id"`
	UserID                   int       `json:"user_id"`
	AccountID                int       `json:"account_id"`
	PatternType              string    `json:"pattern_type"`
	PatternName              string    `json:"pattern_name"`
	ConfidenceScore          float64   `json:"confidence_score"`
	Frequency                string    `json:"frequency"`
	TrendDirection           string    `json:"trend_direction"`
	SupportingEmailIDs       []string  `json:"supporting_email_ids,omitempty"`
	KeyCharacteristics       []string  `json:"key_characteristics,omitempty"`
	CoordinationRequirements []string  `json:"coordination_requirements,omitempty"`
	SuggestedAutomations     []string  `json:"suggested_automations,omitempty"`
	Stakeholders             []string  `json:"stakeholders,omitempty"`
	SeasonalFactors          []string  `json:"seasonal_factors,omitempty"`
	Fallback                 bool      `json:"fallback"`
	FirstDetected            time.Time `json:"first_detected"`
	LastUpdated              time.Time `json:"last_updated"`
}
