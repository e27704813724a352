package ingest

import (
	"context"
	"fmt"

	"famcoord/internal/model"
)

// FetchRequest selects a slice of the account's mailbox.
type FetchRequest struct {
	AccountID  int    `json:"account_id"`
	MaxResults int    `json:"max_results"`
	Query      string `json:"query"`
}

// Fetcher is the ingestion collaborator. It owns provider pagination and MIME
// decoding and hands back normalized records.
type Fetcher interface {
	FetchEmails(ctx context.Context, req FetchRequest) ([]model.RawEmail, error)
}

// BuildFetchRequest maps a batch type onto a provider query and result cap.
// Incremental runs cover the last 7 days, refresh the last 30; full runs have
// no time filter and rely on the cap alone.
func BuildFetchRequest(accountID int, batchType string, fullLimit int) (FetchRequest, error) {
	switch batchType {
	case model.BatchTypeFull:
		return FetchRequest{AccountID: accountID, MaxResults: fullLimit, Query: ""}, nil
	case model.BatchTypeIncremental:
		return FetchRequest{AccountID: accountID, MaxResults: fullLimit, Query: "newer_than:7d"}, nil
	case model.BatchTypeRefresh:
		return FetchRequest{AccountID: accountID, MaxResults: fullLimit, Query: "newer_than:30d"}, nil
	default:
		return FetchRequest{}, fmt.Errorf("unknown batch type: %s", batchType)
	}
}
