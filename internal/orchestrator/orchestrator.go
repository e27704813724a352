package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"famcoord/internal/ingest"
	"famcoord/internal/ledger"
	"famcoord/internal/model"
	"famcoord/internal/pipeline"
	"famcoord/pkg/metrics"
)

// JobStore is the slice of the job repository the orchestrator mutates. The
// orchestrator is the only writer of job counters.
type JobStore interface {
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	SetTotalEmails(ctx context.Context, id string, total int) error
	FlushCounters(ctx context.Context, j *model.ProcessingJob) error
	Complete(ctx context.Context, j *model.ProcessingJob) error
	Fail(ctx context.Context, j *model.ProcessingJob, errMsg string) error
}

// EmailStore persists analyzed emails.
type EmailStore interface {
	InsertBatch(ctx context.Context, emails []*model.AnalyzedEmail) error
}

// Analyzer runs the per-email pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, email model.RawEmail) (*pipeline.Result, error)
}

// Config tunes sub-batch execution.
type Config struct {
	SubBatchSize   int
	SubBatchDelay  time.Duration
	FullFetchLimit int
}

// Orchestrator drives one processing job through its state machine:
// pending -> processing -> completed|failed. Individual email failures are
// isolated and counted; only fetch or datastore errors fail the job.
type Orchestrator struct {
	jobs    JobStore
	emails  EmailStore
	fetcher ingest.Fetcher
	analyze Analyzer
	ledger  *ledger.Ledger
	logger  *zap.Logger
	cfg     Config
}

func New(jobs JobStore, emails EmailStore, fetcher ingest.Fetcher, analyzer Analyzer, led *ledger.Ledger, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = 10
	}
	if cfg.FullFetchLimit <= 0 {
		cfg.FullFetchLimit = 500
	}
	return &Orchestrator{
		jobs:    jobs,
		emails:  emails,
		fetcher: fetcher,
		analyze: analyzer,
		ledger:  led,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run executes the job to a terminal state. The returned error reports
// job-level failure; the job row is already marked failed when it is non-nil.
func (o *Orchestrator) Run(ctx context.Context, job *model.ProcessingJob) error {
	start := time.Now()

	if err := o.jobs.MarkProcessing(ctx, job.ID, start); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to start job: %w", err))
	}
	job.Status = model.JobStatusProcessing
	job.StartedAt = &start

	req, err := ingest.BuildFetchRequest(job.AccountID, job.BatchType, o.cfg.FullFetchLimit)
	if err != nil {
		return o.failJob(ctx, job, err)
	}

	fetchStart := time.Now()
	raw, err := o.fetcher.FetchEmails(ctx, req)
	o.ledger.Performance(ctx, "email_fetch", time.Since(fetchStart), err == nil)
	if err != nil {
		return o.failJob(ctx, job, fmt.Errorf("email fetch failed: %w", err))
	}

	valid := make([]model.RawEmail, 0, len(raw))
	for _, e := range raw {
		if skip, reason := pipeline.ShouldSkip(e); skip {
			metrics.IncrementEmailsProcessed("skipped")
			o.logger.Debug("Skipping email",
				zap.String("message_id", e.MessageID),
				zap.String("reason", reason),
			)
			continue
		}
		valid = append(valid, e)
	}

	job.TotalEmails = len(valid)
	if err := o.jobs.SetTotalEmails(ctx, job.ID, job.TotalEmails); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to record batch size: %w", err))
	}

	o.ledger.Event(ctx, model.LevelInfo, "batch_processing", "starting batch", nil, map[string]string{
		"job_id":       job.ID,
		"batch_type":   job.BatchType,
		"fetched":      fmt.Sprintf("%d", len(raw)),
		"total_emails": fmt.Sprintf("%d", job.TotalEmails),
	})

	for i := 0; i < len(valid); i += o.cfg.SubBatchSize {
		end := i + o.cfg.SubBatchSize
		if end > len(valid) {
			end = len(valid)
		}

		analyzed, failed := o.runSubBatch(ctx, job.ID, valid[i:end])

		if len(analyzed) > 0 {
			if err := o.emails.InsertBatch(ctx, analyzed); err != nil {
				return o.failJob(ctx, job, fmt.Errorf("failed to persist analyzed emails: %w", err))
			}
		}

		job.ProcessedCount += len(analyzed)
		job.FailedCount += failed
		for _, e := range analyzed {
			job.LLMCalls += e.LLMCalls
			job.CostCents += e.CostCents
		}
		job.EmbeddingCalls += len(analyzed)

		// progress is flushed per sub-batch, not per email
		if err := o.jobs.FlushCounters(ctx, job); err != nil {
			return o.failJob(ctx, job, fmt.Errorf("failed to flush job counters: %w", err))
		}

		// breathing room for the model service's rate limits
		if end < len(valid) && o.cfg.SubBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return o.failJob(ctx, job, ctx.Err())
			case <-time.After(o.cfg.SubBatchDelay):
			}
		}
	}

	now := time.Now()
	job.CompletedAt = &now
	if err := o.jobs.Complete(ctx, job); err != nil {
		return o.failJob(ctx, job, fmt.Errorf("failed to complete job: %w", err))
	}
	job.Status = model.JobStatusCompleted

	metrics.RecordJobDuration(job.BatchType, job.Status, time.Since(start))
	o.ledger.Performance(ctx, "batch_processing", time.Since(start), true)
	o.ledger.CostUsage(ctx, "batch_processing", job.CostCents)
	o.ledger.Event(ctx, model.LevelInfo, "batch_processing", "batch completed", nil, map[string]string{
		"job_id":    job.ID,
		"processed": fmt.Sprintf("%d", job.ProcessedCount),
		"failed":    fmt.Sprintf("%d", job.FailedCount),
	})

	return nil
}

type emailOutcome struct {
	analyzed *model.AnalyzedEmail
	err      error
}

// runSubBatch analyzes a slice of emails concurrently and waits for every
// outcome. One email's failure (or panic) never cancels its siblings; the
// job counters are the only shared state and are updated by the caller after
// the whole sub-batch resolves.
func (o *Orchestrator) runSubBatch(ctx context.Context, jobID string, emails []model.RawEmail) ([]*model.AnalyzedEmail, int) {
	outcomes := make([]emailOutcome, len(emails))
	var wg sync.WaitGroup

	for i, email := range emails {
		wg.Add(1)
		go func(i int, email model.RawEmail) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = emailOutcome{err: fmt.Errorf("pipeline panic: %v", r)}
				}
			}()

			res, err := o.analyze.Analyze(ctx, email)
			if err != nil {
				outcomes[i] = emailOutcome{err: err}
				return
			}
			res.Email.JobID = jobID
			outcomes[i] = emailOutcome{analyzed: res.Email}
		}(i, email)
	}
	wg.Wait()

	analyzed := make([]*model.AnalyzedEmail, 0, len(emails))
	failed := 0
	for i, out := range outcomes {
		if out.err != nil {
			failed++
			metrics.IncrementEmailsProcessed("failed")
			o.ledger.Event(ctx, model.LevelError, "email_failure", "email analysis failed", out.err, map[string]string{
				"job_id":     jobID,
				"message_id": emails[i].MessageID,
			})
			continue
		}
		metrics.IncrementEmailsProcessed("success")
		analyzed = append(analyzed, out.analyzed)
	}

	return analyzed, failed
}

func (o *Orchestrator) failJob(ctx context.Context, job *model.ProcessingJob, cause error) error {
	job.Status = model.JobStatusFailed
	job.ErrorMessage = cause.Error()

	o.ledger.Event(ctx, model.LevelCritical, "batch_processing", "job failed", cause, map[string]string{
		"job_id": job.ID,
	})
	metrics.RecordJobDuration(job.BatchType, model.JobStatusFailed, time.Since(job.CreatedAt))

	if err := o.jobs.Fail(ctx, job, cause.Error()); err != nil {
		o.logger.Error("Failed to mark job failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
	return cause
}
