package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"famcoord/internal/model"
	"famcoord/pkg/outbox"
)

type JobRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
}

func NewJobRepository(db *pgxpool.Pool, ob *outbox.Repository) *JobRepository {
	return &JobRepository{db: db, outbox: ob}
}

// Create inserts a pending job.
func (r *JobRepository) Create(ctx context.Context, j *model.ProcessingJob) error {
	query := `
        INSERT INTO processing_jobs (id, account_id, status, batch_type, created_at)
        VALUES ($1, $2, 'pending', $3, NOW())
    `
	_, err := r.db.Exec(ctx, query, j.ID, j.AccountID, j.BatchType)
	return err
}

// FindByID returns a job by id.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*model.ProcessingJob, error) {
	query := `
        SELECT id, account_id, status, batch_type, total_emails, processed_emails,
               failed_emails, embedding_calls, llm_calls, cost_cents,
               started_at, completed_at, error_message, created_at
        FROM processing_jobs
        WHERE id = $1
    `
	var j model.ProcessingJob
	err := r.db.QueryRow(ctx, query, id).Scan(
		&j.ID,
		&j.AccountID,
		&j.Status,
		&j.BatchType,
		&j.TotalEmails,
		&j.ProcessedCount,
		&j.FailedCount,
		&j.EmbeddingCalls,
		&j.LLMCalls,
		&j.CostCents,
		&j.StartedAt,
		&j.CompletedAt,
		&j.ErrorMessage,
		&j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// MarkProcessing transitions pending -> processing. The WHERE clause keeps
// the transition one-way.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string, startedAt time.Time) error {
	query := `
        UPDATE processing_jobs
        SET status = 'processing', started_at = $1
        WHERE id = $2 AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, startedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not pending", id)
	}
	return nil
}

// SetTotalEmails records the batch size once the fetch has resolved.
func (r *JobRepository) SetTotalEmails(ctx context.Context, id string, total int) error {
	query := `
        UPDATE processing_jobs
        SET total_emails = $1
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, total, id)
	return err
}

// FlushCounters persists the running counters after a sub-batch resolves.
func (r *JobRepository) FlushCounters(ctx context.Context, j *model.ProcessingJob) error {
	query := `
        UPDATE processing_jobs
        SET processed_emails = $1, failed_emails = $2, embedding_calls = $3,
            llm_calls = $4, cost_cents = $5
        WHERE id = $6
    `
	_, err := r.db.Exec(ctx, query,
		j.ProcessedCount, j.FailedCount, j.EmbeddingCalls, j.LLMCalls, j.CostCents, j.ID)
	return err
}

// Complete marks the job terminal and records a job.completed event in the
// outbox within the same transaction.
func (r *JobRepository) Complete(ctx context.Context, j *model.ProcessingJob) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        UPDATE processing_jobs
        SET status = 'completed', processed_emails = $1, failed_emails = $2,
            embedding_calls = $3, llm_calls = $4, cost_cents = $5, completed_at = $6
        WHERE id = $7 AND status = 'processing'
    `
	tag, err := tx.Exec(ctx, query,
		j.ProcessedCount, j.FailedCount, j.EmbeddingCalls, j.LLMCalls, j.CostCents,
		j.CompletedAt, j.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not processing", j.ID)
	}

	payload := map[string]any{
		"job_id":           j.ID,
		"account_id":       j.AccountID,
		"total_emails":     j.TotalEmails,
		"processed_emails": j.ProcessedCount,
		"failed_emails":    j.FailedCount,
		"cost_cents":       j.CostCents,
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outbox, "processing_job", nil, "job.completed", payload); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Fail marks the job terminally failed with an error message.
func (r *JobRepository) Fail(ctx context.Context, j *model.ProcessingJob, errMsg string) error {
	query := `
        UPDATE processing_jobs
        SET status = 'failed', error_message = $1, completed_at = NOW(),
            processed_emails = $2, failed_emails = $3
        WHERE id = $4 AND status IN ('pending', 'processing')
    `
	_, err := r.db.Exec(ctx, query, errMsg, j.ProcessedCount, j.FailedCount, j.ID)
	return err
}

// ActiveJobForAccount returns the id of a pending/processing job for the
// account, or "" when none exists.
func (r *JobRepository) ActiveJobForAccount(ctx context.Context, accountID int) (string, error) {
	query := `
        SELECT id FROM processing_jobs
        WHERE account_id = $1 AND status IN ('pending', 'processing')
        ORDER BY created_at DESC
        LIMIT 1
    `
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	if !rows.Next() {
		return "", rows.Err()
	}
	var id string
	if err := rows.Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}
