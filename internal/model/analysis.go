package model

import "time"

// Urgency levels derived from the priority score.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// MaxActionItems caps extracted actionable items per email.
const MaxActionItems = 5

// ThemeScore is one theme's detection result for a single email.
type ThemeScore struct {
	Confidence  float64  `json:"confidence"`
	Evidence    []string `json:"evidence,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
}

// ActionItem is one actionable task extracted from an email.
type ActionItem struct {
	Action   string     `json:"action"`
	Priority string     `json:"priority"`
	Category string     `json:"category"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Assignee string     `json:"assignee,omitempty"`
}

// AnalyzedEmail is the pipeline's output for one raw email. Created once,
// never mutated, queryable across jobs for pattern discovery.
type AnalyzedEmail struct {
	MessageID       string                `json:"message_id"`
	ThreadID        string                `json:"thread_id,omitempty"`
	JobID           string                `json:"job_id"`
	Subject         string                `json:"subject"`
	SenderEmail     string                `json:"sender_email"`
	SentDate        time.Time             `json:"sent_date"`
	ContentSummary  string                `json:"content_summary"`
	Language        string                `json:"language"`
	Themes          map[string]ThemeScore `json:"themes"`
	PrimaryTheme    string                `json:"primary_theme"`
	SecondaryThemes []string              `json:"secondary_themes,omitempty"`
	PriorityScore   float64               `json:"priority_score"`
	UrgencyLevel    string                `json:"urgency_level"`
	ActionItems     []ActionItem          `json:"actionable_items,omitempty"`
	Keywords        []string              `json:"keywords,omitempty"`
	Embedding       []float32             `json:"-"`
	EmbeddingModel  string                `json:"embedding_model"`
	CostCents       float64               `json:"cost_estimate_cents"`
	LLMCalls        int                   `json:"llm_calls_made"`
	CreatedAt       time.Time             `json:"created_at"`
}

// UrgencyFromScore maps a clamped priority score onto an urgency level.
func UrgencyFromScore(score float64) string {
	switch {
	case score >= 0.7:
		return UrgencyHigh
	case score >= 0.4:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
