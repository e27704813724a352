package pipeline

import (
	"strings"

	"famcoord/internal/model"
)

// minBodyLength is the shortest body worth analyzing.
const minBodyLength = 20

var automatedSenderMarkers = []string{
	"no-reply", "noreply", "do-not-reply", "donotreply",
	"mailer-daemon", "postmaster", "notifications@",
}

// ShouldSkip decides whether an email is worth running through the pipeline
// at all. Skipped emails are not failures and are never counted toward the
// job's totals.
func ShouldSkip(email model.RawEmail) (bool, string) {
	if strings.TrimSpace(email.Subject) == "" && strings.TrimSpace(email.Body) == "" {
		return true, "empty_subject_and_body"
	}

	sender := strings.ToLower(email.SenderEmail)
	for _, marker := range automatedSenderMarkers {
		if strings.Contains(sender, marker) {
			return true, "automated_sender"
		}
	}

	if len(strings.TrimSpace(email.Body)) < minBodyLength {
		return true, "body_too_short"
	}

	return false, ""
}
