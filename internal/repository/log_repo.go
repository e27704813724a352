package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"famcoord/internal/model"
)

type LogRepository struct {
	db *pgxpool.Pool
}

func NewLogRepository(db *pgxpool.Pool) *LogRepository {
	return &LogRepository{db: db}
}

// Append writes one ledger row. The log tables are append-only.
func (r *LogRepository) Append(ctx context.Context, e *model.LogEvent) error {
	var contextJSON []byte
	if len(e.Context) > 0 {
		b, err := json.Marshal(e.Context)
		if err != nil {
			return err
		}
		contextJSON = b
	}

	query := `
        INSERT INTO log_events (level, category, message, error_details, context, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
    `
	_, err := r.db.Exec(ctx, query, e.Level, e.Category, e.Message, e.ErrorDetails, contextJSON)
	return err
}
