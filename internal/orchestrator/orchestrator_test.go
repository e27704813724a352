package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"famcoord/internal/ingest"
	"famcoord/internal/ledger"
	"famcoord/internal/model"
	"famcoord/internal/pipeline"
)

type fakeJobStore struct {
	mu           sync.Mutex
	markedAt     *time.Time
	totalSet     int
	flushCalls   int
	flushed      []model.ProcessingJob
	completed    *model.ProcessingJob
	failedMsg    string
	completeErr  error
}

func (s *fakeJobStore) MarkProcessing(_ context.Context, _ string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markedAt = &startedAt
	return nil
}

func (s *fakeJobStore) SetTotalEmails(_ context.Context, _ string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalSet = total
	return nil
}

func (s *fakeJobStore) FlushCounters(_ context.Context, j *model.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushCalls++
	s.flushed = append(s.flushed, *j)
	return nil
}

func (s *fakeJobStore) Complete(_ context.Context, j *model.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completeErr != nil {
		return s.completeErr
	}
	cp := *j
	s.completed = &cp
	return nil
}

func (s *fakeJobStore) Fail(_ context.Context, _ *model.ProcessingJob, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedMsg = errMsg
	return nil
}

type fakeEmailStore struct {
	mu       sync.Mutex
	inserted []*model.AnalyzedEmail
	batches  int
}

func (s *fakeEmailStore) InsertBatch(_ context.Context, emails []*model.AnalyzedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.inserted = append(s.inserted, emails...)
	return nil
}

type fakeFetcher struct {
	emails []model.RawEmail
	err    error
}

func (f *fakeFetcher) FetchEmails(context.Context, ingest.FetchRequest) ([]model.RawEmail, error) {
	return f.emails, f.err
}

type fakeAnalyzer struct {
	failIDs map[string]bool
}

func (a *fakeAnalyzer) Analyze(_ context.Context, email model.RawEmail) (*pipeline.Result, error) {
	if a.failIDs[email.MessageID] {
		return nil, errors.New("embedding generation failed: service down")
	}
	return &pipeline.Result{
		Email: &model.AnalyzedEmail{
			MessageID: email.MessageID,
			SentDate:  email.SentDate,
			LLMCalls:  4,
			CostCents: 0.81,
		},
	}, nil
}

func makeEmails(n int) []model.RawEmail {
	emails := make([]model.RawEmail, 0, n)
	for i := 0; i < n; i++ {
		emails = append(emails, model.RawEmail{
			MessageID:   fmt.Sprintf("msg-%d", i),
			Subject:     "Practice schedule",
			SenderEmail: "coach@club.org",
			SentDate:    time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
			Body:        "Practice is moved to Thursday this week, please plan pickup accordingly.",
		})
	}
	return emails
}

func newTestOrchestrator(jobs *fakeJobStore, emails *fakeEmailStore, fetcher *fakeFetcher, analyzer Analyzer) *Orchestrator {
	led := ledger.New(zap.NewNop(), nil, nil)
	return New(jobs, emails, fetcher, analyzer, led, zap.NewNop(), Config{
		SubBatchSize:   10,
		SubBatchDelay:  0,
		FullFetchLimit: 500,
	})
}

func pendingJob() *model.ProcessingJob {
	return &model.ProcessingJob{
		ID:        "job-1",
		AccountID: 7,
		Status:    model.JobStatusPending,
		BatchType: model.BatchTypeIncremental,
		CreatedAt: time.Now(),
	}
}

func TestRunSkipsInvalidEmails(t *testing.T) {
	raw := makeEmails(10)
	// two invalid: one automated sender, one short body
	raw = append(raw,
		model.RawEmail{MessageID: "auto", Subject: "Receipt", SenderEmail: "no-reply@shop.com", Body: "Your order has shipped and is on its way."},
		model.RawEmail{MessageID: "short", Subject: "hi", SenderEmail: "mom@gmail.com", Body: "thanks"},
	)

	jobs := &fakeJobStore{}
	store := &fakeEmailStore{}
	orch := newTestOrchestrator(jobs, store, &fakeFetcher{emails: raw}, &fakeAnalyzer{})

	job := pendingJob()
	require.NoError(t, orch.Run(context.Background(), job))

	// skipped emails never count toward totals
	assert.Equal(t, 10, jobs.totalSet)
	assert.Equal(t, 10, job.ProcessedCount)
	assert.Equal(t, 0, job.FailedCount)
	require.NotNil(t, jobs.completed)
	assert.Len(t, store.inserted, 10)
}

func TestRunIsolatesPerEmailFailures(t *testing.T) {
	jobs := &fakeJobStore{}
	store := &fakeEmailStore{}
	analyzer := &fakeAnalyzer{failIDs: map[string]bool{"msg-3": true}}
	orch := newTestOrchestrator(jobs, store, &fakeFetcher{emails: makeEmails(10)}, analyzer)

	job := pendingJob()
	require.NoError(t, orch.Run(context.Background(), job))

	assert.Equal(t, 9, job.ProcessedCount)
	assert.Equal(t, 1, job.FailedCount)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Len(t, store.inserted, 9)
	require.NotNil(t, jobs.completed)
	assert.Equal(t, 9, jobs.completed.ProcessedCount)
	assert.Equal(t, 1, jobs.completed.FailedCount)
}

func TestRunFlushesCountersPerSubBatch(t *testing.T) {
	jobs := &fakeJobStore{}
	store := &fakeEmailStore{}
	orch := newTestOrchestrator(jobs, store, &fakeFetcher{emails: makeEmails(25)}, &fakeAnalyzer{})

	job := pendingJob()
	require.NoError(t, orch.Run(context.Background(), job))

	// 25 emails in sub-batches of 10 -> 3 flushes, monotonic progress
	assert.Equal(t, 3, jobs.flushCalls)
	assert.Equal(t, 3, store.batches)
	require.Len(t, jobs.flushed, 3)
	assert.Equal(t, 10, jobs.flushed[0].ProcessedCount)
	assert.Equal(t, 20, jobs.flushed[1].ProcessedCount)
	assert.Equal(t, 25, jobs.flushed[2].ProcessedCount)

	// aggregates roll up per-email cost and calls
	assert.Equal(t, 25*4, job.LLMCalls)
	assert.Equal(t, 25, job.EmbeddingCalls)
	assert.InDelta(t, 25*0.81, job.CostCents, 1e-9)
}

func TestRunFetchFailureFailsJob(t *testing.T) {
	jobs := &fakeJobStore{}
	store := &fakeEmailStore{}
	orch := newTestOrchestrator(jobs, store, &fakeFetcher{err: errors.New("ingestion service 5xx: 502")}, &fakeAnalyzer{})

	job := pendingJob()
	err := orch.Run(context.Background(), job)
	require.Error(t, err)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, jobs.failedMsg, "email fetch failed")
	assert.Nil(t, jobs.completed)
	assert.Empty(t, store.inserted)
}

func TestRunInvalidBatchTypeFailsJob(t *testing.T) {
	jobs := &fakeJobStore{}
	orch := newTestOrchestrator(jobs, &fakeEmailStore{}, &fakeFetcher{}, &fakeAnalyzer{})

	job := pendingJob()
	job.BatchType = "bogus"
	err := orch.Run(context.Background(), job)
	require.Error(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.NotEmpty(t, jobs.failedMsg)
}
