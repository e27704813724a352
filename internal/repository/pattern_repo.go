package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"famcoord/internal/model"
	"famcoord/pkg/outbox"
)

type PatternRepository struct {
	db     *pgxpool.Pool
	outbox *outbox.Repository
}

func NewPatternRepository(db *pgxpool.Pool, ob *outbox.Repository) *PatternRepository {
	return &PatternRepository{db: db, outbox: ob}
}

// ReplaceForAccount snapshots the pattern set for (user, account): delete all
// existing rows, insert the new set, and record a patterns.updated event, all
// in one transaction. Pattern identity is not stable across runs.
func (r *PatternRepository) ReplaceForAccount(ctx context.Context, userID, accountID int, patterns []*model.FamilyPattern) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM family_patterns WHERE user_id = $1 AND account_id = $2`,
		userID, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete existing patterns: %w", err)
	}

	batch := &pgx.Batch{}
	query := `
        INSERT INTO family_patterns (
            id, user_id, account_id, pattern_type, pattern_name,
            confidence_score, frequency, trend_direction, supporting_email_ids,
            key_characteristics, coordination_requirements, suggested_automations,
            stakeholders, seasonal_factors, is_fallback, first_detected, last_updated
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `
	for _, p := range patterns {
		batch.Queue(query,
			p.ID, p.UserID, p.AccountID, p.PatternType, p.PatternName,
			p.ConfidenceScore, p.Frequency, p.TrendDirection, p.SupportingEmailIDs,
			p.KeyCharacteristics, p.CoordinationRequirements, p.SuggestedAutomations,
			p.Stakeholders, p.SeasonalFactors, p.Fallback, p.FirstDetected, p.LastUpdated,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range patterns {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	payload := map[string]any{
		"user_id":       userID,
		"account_id":    accountID,
		"pattern_count": len(patterns),
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outbox, "family_pattern", nil, "patterns.updated", payload); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListForAccount returns the current pattern snapshot, highest confidence first.
func (r *PatternRepository) ListForAccount(ctx context.Context, userID, accountID int) ([]*model.FamilyPattern, error) {
	query := `
        SELECT id, user_id, account_id, pattern_type, pattern_name,
               confidence_score, frequency, trend_direction, supporting_email_ids,
               key_characteristics, coordination_requirements, suggested_automations,
               stakeholders, seasonal_factors, is_fallback, first_detected, last_updated
        FROM family_patterns
        WHERE user_id = $1 AND account_id = $2
        ORDER BY confidence_score DESC
    `
	rows, err := r.db.Query(ctx, query, userID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patterns := []*model.FamilyPattern{}
	for rows.Next() {
		var p model.FamilyPattern
		err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.AccountID,
			&p.PatternType,
			&p.PatternName,
			&p.ConfidenceScore,
			&p.Frequency,
			&p.TrendDirection,
			&p.SupportingEmailIDs,
			&p.KeyCharacteristics,
			&p.CoordinationRequirements,
			&p.SuggestedAutomations,
			&p.Stakeholders,
			&p.SeasonalFactors,
			&p.Fallback,
			&p.FirstDetected,
			&p.LastUpdated,
		)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}
