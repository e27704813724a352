package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"famcoord/internal/model"
)

type AnalyzedEmailRepository struct {
	db *pgxpool.Pool
}

func NewAnalyzedEmailRepository(db *pgxpool.Pool) *AnalyzedEmailRepository {
	return &AnalyzedEmailRepository{db: db}
}

// InsertBatch stores a sub-batch of analyzed emails. ON CONFLICT keeps the
// insert idempotent across message redeliveries.
func (r *AnalyzedEmailRepository) InsertBatch(ctx context.Context, emails []*model.AnalyzedEmail) error {
	if len(emails) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
        INSERT INTO analyzed_emails (
            job_id, message_id, thread_id, subject, sender_email, sent_date,
            content_summary, language, themes, primary_theme, secondary_themes,
            priority_score, urgency_level, actionable_items, keywords,
            embedding, embedding_model, cost_cents, llm_calls, created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
        ON CONFLICT (job_id, message_id) DO NOTHING
    `
	for _, e := range emails {
		themes, err := json.Marshal(e.Themes)
		if err != nil {
			return fmt.Errorf("failed to marshal themes for %s: %w", e.MessageID, err)
		}
		actions, err := json.Marshal(e.ActionItems)
		if err != nil {
			return fmt.Errorf("failed to marshal actions for %s: %w", e.MessageID, err)
		}
		batch.Queue(query,
			e.JobID, e.MessageID, e.ThreadID, e.Subject, e.SenderEmail, e.SentDate,
			e.ContentSummary, e.Language, themes, e.PrimaryTheme, e.SecondaryThemes,
			e.PriorityScore, e.UrgencyLevel, actions, e.Keywords,
			e.Embedding, e.EmbeddingModel, e.CostCents, e.LLMCalls,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for range emails {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert analyzed email: %w", err)
		}
	}
	return nil
}

// ListSince returns analyzed emails for an account sent after the cutoff,
// newest first, capped at limit. Used by pattern discovery.
func (r *AnalyzedEmailRepository) ListSince(ctx context.Context, accountID int, since time.Time, limit int) ([]*model.AnalyzedEmail, error) {
	query := `
        SELECT a.message_id, a.thread_id, a.job_id, a.subject, a.sender_email,
               a.sent_date, a.content_summary, a.language, a.themes,
               a.primary_theme, a.secondary_themes, a.priority_score,
               a.urgency_level, a.actionable_items, a.keywords,
               a.embedding_model, a.cost_cents, a.llm_calls, a.created_at
        FROM analyzed_emails a
        JOIN processing_jobs j ON a.job_id = j.id
        WHERE j.account_id = $1 AND a.sent_date >= $2
        ORDER BY a.sent_date DESC
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, accountID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyzedEmails(rows)
}

// ListByAccount returns the newest analyzed emails for an account.
func (r *AnalyzedEmailRepository) ListByAccount(ctx context.Context, accountID, limit int) ([]*model.AnalyzedEmail, error) {
	query := `
        SELECT a.message_id, a.thread_id, a.job_id, a.subject, a.sender_email,
               a.sent_date, a.content_summary, a.language, a.themes,
               a.primary_theme, a.secondary_themes, a.priority_score,
               a.urgency_level, a.actionable_items, a.keywords,
               a.embedding_model, a.cost_cents, a.llm_calls, a.created_at
        FROM analyzed_emails a
        JOIN processing_jobs j ON a.job_id = j.id
        WHERE j.account_id = $1
        ORDER BY a.sent_date DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAnalyzedEmails(rows)
}

func scanAnalyzedEmails(rows pgx.Rows) ([]*model.AnalyzedEmail, error) {
	emails := []*model.AnalyzedEmail{}
	for rows.Next() {
		var e model.AnalyzedEmail
		var themes, actions []byte

		err := rows.Scan(
			&e.MessageID,
			&e.ThreadID,
			&e.JobID,
			&e.Subject,
			&e.SenderEmail,
			&e.SentDate,
			&e.ContentSummary,
			&e.Language,
			&themes,
			&e.PrimaryTheme,
			&e.SecondaryThemes,
			&e.PriorityScore,
			&e.UrgencyLevel,
			&actions,
			&e.Keywords,
			&e.EmbeddingModel,
			&e.CostCents,
			&e.LLMCalls,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(themes) > 0 {
			if err := json.Unmarshal(themes, &e.Themes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal themes for %s: %w", e.MessageID, err)
			}
		}
		if len(actions) > 0 {
			if err := json.Unmarshal(actions, &e.ActionItems); err != nil {
				return nil, fmt.Errorf("failed to unmarshal actions for %s: %w", e.MessageID, err)
			}
		}

		emails = append(emails, &e)
	}
	return emails, rows.Err()
}
