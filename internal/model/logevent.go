package model

import "time"

// Log levels for the observability ledger.
const (
	LevelDebug    = "debug"
	LevelInfo     = "info"
	LevelWarn     = "warn"
	LevelError    = "error"
	LevelCritical = "critical"
)

// LogEvent is one append-only ledger row.
type LogEvent struct {
	ID           int64             `json:"id"`
	Level        string            `json:"level"`
	Category     string            `json:"category"`
	Message      string            `json:"message"`
	ErrorDetails string            `json:"error_details,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}
