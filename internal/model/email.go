package model

import "time"

// RawEmail is the normalized record returned by the ingestion collaborator.
// It is immutable; the pipeline never writes back to it.
type RawEmail struct {
	MessageID   string    `json:"message_id"`
	ThreadID    string    `json:"thread_id,omitempty"`
	Subject     string    `json:"subject"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name,omitempty"`
	SentDate    time.Time `json:"sent_date"`
	Body        string    `json:"body"`
	Labels      []string  `json:"labels,omitempty"`
}
