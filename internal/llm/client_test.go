package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string) *Client {
	return NewClient(url, 5*time.Second, 2, "test-embedding", zap.NewNop())
}

func TestCompleteRetriesOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text": "hello"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	text, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCompleteDoesNotRetry4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx is terminal")
}

func TestCompleteExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exhausted retries")
	// initial attempt plus maxRetries
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	vec, err := c.Embed(context.Background(), "some summary")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "test-embedding", c.EmbeddingModel())
}

func TestEmbedEmptyVectorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding": []}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Embed(context.Background(), "some summary")
	require.Error(t, err)
}
