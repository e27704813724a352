package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"famcoord/internal/mq"
	"famcoord/internal/patterns"
	"famcoord/internal/util"
	"famcoord/pkg/trace"
	pkgutil "famcoord/pkg/util"
)

// defaultLookbackDays is applied when a request omits the window.
const defaultLookbackDays = 90

type PatternsRequestedHandler struct {
	engine       *patterns.Engine
	guard        *util.JobGuard
	retryCounter *pkgutil.RetryCounter
	producer     *mq.Producer
	maxRetries   int64
	logger       *zap.Logger
}

func NewPatternsRequestedHandler(
	engine *patterns.Engine,
	guard *util.JobGuard,
	retryCounter *pkgutil.RetryCounter,
	producer *mq.Producer,
	maxRetries int64,
	logger *zap.Logger,
) *PatternsRequestedHandler {
	return &PatternsRequestedHandler{
		engine:       engine,
		guard:        guard,
		retryCounter: retryCounter,
		producer:     producer,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

// Handle runs one discovery pass for an account. The guard serializes runs
// per account; the pattern table replace would race otherwise.
func (h *PatternsRequestedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in patterns.requested handler", zap.Any("panic", r))
		}
	}()

	var p mq.PatternsRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal PatternsRequestedPayload, sending to DLQ",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		if dlqErr := h.producer.PublishDLQ(mq.RoutingPatternsRequested, raw); dlqErr != nil {
			h.logger.Error("Failed to publish to DLQ", zap.Error(dlqErr))
		}
		return nil
	}

	if p.TraceID != "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}
	if p.LookbackDays <= 0 {
		p.LookbackDays = defaultLookbackDays
	}

	h.logger.Info("Handling patterns.requested event",
		zap.Int("user_id", p.UserID),
		zap.Int("account_id", p.AccountID),
		zap.Int("lookback_days", p.LookbackDays),
	)

	guardID := fmt.Sprintf("discover-%d", p.UserID)
	acquired, err := h.guard.Acquire(ctx, p.AccountID, guardID)
	if err != nil {
		return h.retryOrDrop(ctx, raw, p, fmt.Errorf("discovery guard unavailable: %w", err))
	}
	if !acquired {
		// a run is already in flight; the fresh snapshot it writes covers
		// this request too
		h.logger.Info("Discovery already running for account, dropping duplicate request",
			zap.Int("account_id", p.AccountID),
		)
		return nil
	}
	defer func() {
		if err := h.guard.Release(context.Background(), p.AccountID, guardID); err != nil {
			h.logger.Error("Failed to release discovery guard",
				zap.Int("account_id", p.AccountID),
				zap.Error(err),
			)
		}
	}()

	result, err := h.engine.Discover(ctx, p.UserID, p.AccountID, p.LookbackDays)
	if err != nil {
		if isRetryable, errType := pkgutil.IsRetryableError(err); isRetryable {
			return h.retryOrDrop(ctx, raw, p, fmt.Errorf("discovery failed (%s): %w", errType, err))
		}
		// empty window and similar permanent outcomes are not worth a requeue
		h.logger.Warn("Discovery produced no patterns",
			zap.Int("account_id", p.AccountID),
			zap.Error(err),
		)
		return nil
	}

	h.retryCounter.Reset(ctx, h.retryKey(p))
	h.logger.Info("Discovery completed",
		zap.Int("account_id", p.AccountID),
		zap.Int("patterns", len(result.Patterns)),
		zap.Int("emails_analyzed", result.EmailsAnalyzed),
		zap.Float64("cost_cents", result.CostCents),
	)
	return nil
}

func (h *PatternsRequestedHandler) retryKey(p mq.PatternsRequestedPayload) string {
	return pkgutil.FormatRetryKey("patterns_requested", fmt.Sprintf("%d-%d", p.UserID, p.AccountID))
}

func (h *PatternsRequestedHandler) retryOrDrop(ctx context.Context, raw json.RawMessage, p mq.PatternsRequestedPayload, cause error) error {
	retryCount, err := h.retryCounter.IncrementAndGet(ctx, h.retryKey(p))
	if err != nil {
		h.logger.Warn("Failed to read retry count, continuing anyway", zap.Error(err))
		retryCount = 1
	}

	isRetryable, errType := pkgutil.IsRetryableError(cause)
	if pkgutil.ShouldRetry(retryCount, h.maxRetries, isRetryable) {
		h.logger.Warn("Retryable handler error, requeueing",
			zap.Int("account_id", p.AccountID),
			zap.String("error_type", errType),
			zap.Int64("retry_count", retryCount),
			zap.Error(cause),
		)
		return cause
	}

	h.logger.Error("Retries exhausted, sending to DLQ",
		zap.Int("account_id", p.AccountID),
		zap.String("error_type", errType),
		zap.Int64("retry_count", retryCount),
		zap.Error(cause),
	)
	if dlqErr := h.producer.PublishDLQ(mq.RoutingPatternsRequested, raw); dlqErr != nil {
		h.logger.Error("Failed to publish to DLQ", zap.Error(dlqErr))
	}
	h.retryCounter.Reset(ctx, h.retryKey(p))
	return nil
}
