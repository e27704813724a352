package util

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		errType   string
	}{
		{"nil", nil, false, ""},
		{"no rows", pgx.ErrNoRows, false, "row_not_found"},
		{"wrapped no rows", fmt.Errorf("load job: %w", pgx.ErrNoRows), false, "row_not_found"},
		{"duplicate key", errors.New(`duplicate key value violates unique constraint "analyzed_emails_pkey"`), false, "duplicate_key"},
		{"db connection", errors.New("failed to connect to host: connection refused"), true, "db_connection_error"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"model 5xx", errors.New("model service 5xx: 503"), true, "model_service_error"},
		{"model 4xx", errors.New("model service error: 400"), false, "model_service_rejected"},
		{"ingest 5xx", errors.New("ingestion service 5xx: 502"), true, "ingest_service_error"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, errType := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.errType, errType)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.False(t, ShouldRetry(1, 5, false), "permanent errors never retry")
	assert.True(t, ShouldRetry(1, 5, true))
	assert.True(t, ShouldRetry(5, 5, true))
	assert.False(t, ShouldRetry(6, 5, true), "budget exhausted")
}
