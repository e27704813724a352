package model

import "time"

// Job status values. Transitions are pending -> processing -> completed|failed;
// terminal states are never left.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Batch types select the ingestion time window.
const (
	BatchTypeFull        = "full"
	BatchTypeIncremental = "incremental"
	BatchTypeRefresh     = "refresh"
)

type ProcessingJob struct {
	ID             string     `json:"id"`
	AccountID      int        `json:"account_id"`
	Status         string     `json:"status"`
	BatchType      string     `json:"batch_type"`
	TotalEmails    int        `json:"total_emails"`
	ProcessedCount int        `json:"processed_emails"`
	FailedCount    int        `json:"failed_emails"`
	EmbeddingCalls int        `json:"embedding_calls"`
	LLMCalls       int        `json:"llm_calls"`
	CostCents      float64    `json:"cost_cents"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Terminal reports whether the job can no longer change state.
func (j *ProcessingJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

func ValidBatchType(bt string) bool {
	switch bt {
	case BatchTypeFull, BatchTypeIncremental, BatchTypeRefresh:
		return true
	}
	return false
}
