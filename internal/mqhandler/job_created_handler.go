package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"famcoord/internal/model"
	"famcoord/internal/mq"
	"famcoord/internal/orchestrator"
	"famcoord/internal/repository"
	"famcoord/internal/util"
	"famcoord/pkg/trace"
	pkgutil "famcoord/pkg/util"
)

type JobCreatedHandler struct {
	jobRepo      *repository.JobRepository
	orch         *orchestrator.Orchestrator
	guard        *util.JobGuard
	deduper      *util.Deduper
	retryCounter *pkgutil.RetryCounter
	producer     *mq.Producer
	maxRetries   int64
	logger       *zap.Logger
}

func NewJobCreatedHandler(
	jobRepo *repository.JobRepository,
	orch *orchestrator.Orchestrator,
	guard *util.JobGuard,
	deduper *util.Deduper,
	retryCounter *pkgutil.RetryCounter,
	producer *mq.Producer,
	maxRetries int64,
	logger *zap.Logger,
) *JobCreatedHandler {
	return &JobCreatedHandler{
		jobRepo:      jobRepo,
		orch:         orch,
		guard:        guard,
		deduper:      deduper,
		retryCounter: retryCounter,
		producer:     producer,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

// Handle runs one pending job to a terminal state. Idempotent: redeliveries of
// jobs that already ran are acked without side effects. Returns an error only
// for retryable infrastructure failures below the retry cap; everything else
// is acked, DLQ'd when poisoned.
func (h *JobCreatedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in job.created handler", zap.Any("panic", r))
		}
	}()

	var p mq.JobCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal JobCreatedPayload, sending to DLQ",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		if dlqErr := h.producer.PublishDLQ(mq.RoutingJobCreated, raw); dlqErr != nil {
			h.logger.Error("Failed to publish to DLQ", zap.Error(dlqErr))
		}
		return nil
	}

	if p.TraceID != "" {
		ctx = trace.WithContext(ctx, p.TraceID)
	}

	h.logger.Info("Handling job.created event",
		zap.String("job_id", p.JobID),
		zap.Int("account_id", p.AccountID),
		zap.String("batch_type", p.BatchType),
	)

	job, err := h.jobRepo.FindByID(ctx, p.JobID)
	if errors.Is(err, pgx.ErrNoRows) {
		h.logger.Error("Job not found, dropping event", zap.String("job_id", p.JobID))
		return nil
	}
	if err != nil {
		return h.retryOrDrop(ctx, raw, p.JobID, false, fmt.Errorf("failed to load job: %w", err))
	}
	if job.Terminal() {
		h.logger.Debug("Job already terminal, skipping",
			zap.String("job_id", job.ID),
			zap.String("status", job.Status),
		)
		return nil
	}

	if !h.deduper.AcquireOnce(ctx, "job_created", p.JobID) {
		holder, _ := h.guard.Holder(ctx, job.AccountID)
		if holder == job.ID {
			// an attempt is already in flight on another worker
			return nil
		}
		// stale dedup entry from an earlier failed attempt; the job is
		// still non-terminal, so fall through and run it
	}

	acquired, err := h.guard.Acquire(ctx, job.AccountID, job.ID)
	if err != nil {
		return h.retryOrDrop(ctx, raw, p.JobID, false, fmt.Errorf("job guard unavailable: %w", err))
	}
	if !acquired {
		holder, _ := h.guard.Holder(ctx, job.AccountID)
		if holder == job.ID {
			// this job is being processed right now; ack the duplicate
			return nil
		}
		// another job holds the account; requeue until it finishes
		h.logger.Warn("Account busy, requeueing job",
			zap.String("job_id", job.ID),
			zap.String("holder", holder),
		)
		return h.retryOrDrop(ctx, raw, p.JobID, true, fmt.Errorf("account %d busy with job %s", job.AccountID, holder))
	}
	defer func() {
		if err := h.guard.Release(context.Background(), job.AccountID, job.ID); err != nil {
			h.logger.Error("Failed to release job guard",
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
	}()

	// Run drives the job terminal either way; a returned error means the job
	// row is already marked failed, so the message is acked, not retried.
	if err := h.orch.Run(ctx, job); err != nil {
		h.logger.Error("Job failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return nil
	}

	h.retryCounter.Reset(ctx, pkgutil.FormatRetryKey("job_created", p.JobID))
	h.logger.Info("Job completed",
		zap.String("job_id", job.ID),
		zap.Int("processed", job.ProcessedCount),
		zap.Int("failed", job.FailedCount),
	)
	return nil
}

// retryOrDrop bounds requeues with the Redis retry counter. Below the cap the
// error propagates so the consumer nacks; at the cap the message goes to the
// DLQ and is acked, and the job is terminally failed.
func (h *JobCreatedHandler) retryOrDrop(ctx context.Context, raw json.RawMessage, jobID string, transient bool, cause error) error {
	retryKey := pkgutil.FormatRetryKey("job_created", jobID)
	retryCount, err := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if err != nil {
		h.logger.Warn("Failed to read retry count, continuing anyway",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		retryCount = 1
	}

	isRetryable, errType := pkgutil.IsRetryableError(cause)
	if pkgutil.ShouldRetry(retryCount, h.maxRetries, isRetryable || transient) {
		h.logger.Warn("Retryable handler error, requeueing",
			zap.String("job_id", jobID),
			zap.String("error_type", errType),
			zap.Int64("retry_count", retryCount),
			zap.Error(cause),
		)
		return cause
	}

	h.logger.Error("Retries exhausted, sending to DLQ",
		zap.String("job_id", jobID),
		zap.String("error_type", errType),
		zap.Int64("retry_count", retryCount),
		zap.Error(cause),
	)
	if dlqErr := h.producer.PublishDLQ(mq.RoutingJobCreated, raw); dlqErr != nil {
		h.logger.Error("Failed to publish to DLQ", zap.Error(dlqErr))
	}
	h.retryCounter.Reset(ctx, retryKey)

	if job, ferr := h.jobRepo.FindByID(ctx, jobID); ferr == nil && job != nil && !job.Terminal() {
		job.Status = model.JobStatusFailed
		_ = h.jobRepo.Fail(ctx, job, cause.Error())
	}
	return nil
}
