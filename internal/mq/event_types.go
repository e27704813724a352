package mq

// Routing keys for the events exchange.
const (
	RoutingJobCreated        = "job.created"
	RoutingJobCompleted      = "job.completed"
	RoutingPatternsRequested = "patterns.requested"
	RoutingPatternsUpdated   = "patterns.updated"
)

// JobCreatedPayload triggers the batch orchestrator for a pending job.
type JobCreatedPayload struct {
	JobID     string `json:"job_id"`
	AccountID int    `json:"account_id"`
	BatchType string `json:"batch_type"`
	TraceID   string `json:"trace_id,omitempty"`
}

// PatternsRequestedPayload triggers a pattern discovery run.
type PatternsRequestedPayload struct {
	UserID       int    `json:"user_id"`
	AccountID    int    `json:"account_id"`
	LookbackDays int    `json:"lookback_days"`
	TraceID      string `json:"trace_id,omitempty"`
}
