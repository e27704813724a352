package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcoord/internal/model"
)

func TestBuildFetchRequest(t *testing.T) {
	tests := []struct {
		batchType string
		wantQuery string
	}{
		{model.BatchTypeFull, ""},
		{model.BatchTypeIncremental, "newer_than:7d"},
		{model.BatchTypeRefresh, "newer_than:30d"},
	}

	for _, tt := range tests {
		t.Run(tt.batchType, func(t *testing.T) {
			req, err := BuildFetchRequest(42, tt.batchType, 500)
			require.NoError(t, err)
			assert.Equal(t, 42, req.AccountID)
			assert.Equal(t, 500, req.MaxResults)
			assert.Equal(t, tt.wantQuery, req.Query)
		})
	}
}

func TestBuildFetchRequestUnknownType(t *testing.T) {
	_, err := BuildFetchRequest(42, "weekly", 500)
	require.Error(t, err)
}
