package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"famcoord/pkg/circuitbreaker"
	"famcoord/pkg/metrics"
)

// Client talks to the completion/embedding service. Every analysis stage and
// the pattern characterization step go through Complete; Embed is called once
// per email.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	embeddingModel string
	breaker        *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, maxRetries int, embeddingModel string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     maxRetries,
		embeddingModel: embeddingModel,
		breaker:        circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:         logger,
	}
}

// EmbeddingModel reports which model name Embed uses.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

type completeRequest struct {
	Prompt string `json:"prompt"`
}

type completeResponse struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Complete sends a prompt and returns the raw completion text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var out completeResponse
	err := c.call(ctx, "/complete", completeRequest{Prompt: prompt}, &out)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// Embed returns a fixed-dimension vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var out embedResponse
	err := c.call(ctx, "/embed", embedRequest{Model: c.embeddingModel, Input: text}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("model service error: empty embedding response")
	}
	return out.Embedding, nil
}

// call posts JSON with bounded retries behind the circuit breaker. 5xx and
// transport errors are retried with exponential backoff; 4xx is terminal.
func (c *Client) call(ctx context.Context, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		start := time.Now()
		err := c.breaker.Execute(func() error {
			return c.doOnce(ctx, endpoint, body, out)
		})
		if err == nil {
			metrics.RecordModelCallLatency(endpoint, "ok", time.Since(start))
			return nil
		}
		metrics.RecordModelCallLatency(endpoint, "error", time.Since(start))
		lastErr = err

		if !isTransient(err) {
			return err
		}
		c.logger.Warn("Model service call failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return fmt.Errorf("model service call exhausted retries: %w", lastErr)
}

func (c *Client) doOnce(ctx context.Context, endpoint string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("model service 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model service error: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// isTransient reports whether another attempt could plausibly succeed.
func isTransient(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "model service 5xx") {
		return true
	}
	if strings.Contains(s, "model service error") {
		return false
	}
	// transport-level failures (dial, reset, client timeout)
	return true
}
