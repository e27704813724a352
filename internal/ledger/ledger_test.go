package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"famcoord/internal/model"
)

type fakeStore struct {
	events []*model.LogEvent
	err    error
}

func (s *fakeStore) Append(_ context.Context, e *model.LogEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, e)
	return nil
}

type panicStore struct{}

func (panicStore) Append(context.Context, *model.LogEvent) error {
	panic("store exploded")
}

type fakeAlert struct {
	alerts []string
}

func (a *fakeAlert) Alert(level, category, _ string) {
	a.alerts = append(a.alerts, level+"/"+category)
}

func findEvents(events []*model.LogEvent, category string) []*model.LogEvent {
	var out []*model.LogEvent
	for _, e := range events {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

func TestEventAppendsAndAlerts(t *testing.T) {
	store := &fakeStore{}
	alert := &fakeAlert{}
	l := New(zap.NewNop(), store, alert)

	l.Event(context.Background(), model.LevelInfo, "batch_processing", "starting", nil, map[string]string{"job_id": "j1"})
	l.Event(context.Background(), model.LevelError, "email_failure", "boom", errors.New("broken"), nil)

	require.Len(t, store.events, 2)
	assert.Equal(t, "j1", store.events[0].Context["job_id"])
	assert.Equal(t, "broken", store.events[1].ErrorDetails)

	// only error/critical reach the alert sink
	assert.Equal(t, []string{"error/email_failure"}, alert.alerts)
}

func TestEventSwallowsStoreErrors(t *testing.T) {
	l := New(zap.NewNop(), &fakeStore{err: errors.New("db down")}, &fakeAlert{})

	assert.NotPanics(t, func() {
		l.Event(context.Background(), model.LevelInfo, "cost", "msg", nil, nil)
	})
}

func TestEventSwallowsStorePanics(t *testing.T) {
	l := New(zap.NewNop(), panicStore{}, &fakeAlert{})

	assert.NotPanics(t, func() {
		l.Event(context.Background(), model.LevelInfo, "cost", "msg", nil, nil)
		l.Performance(context.Background(), "email_pipeline", time.Second, true)
		l.CostUsage(context.Background(), "email_pipeline", 0.81)
	})
}

func TestPerformanceSLABreach(t *testing.T) {
	store := &fakeStore{}
	l := New(zap.NewNop(), store, &fakeAlert{})

	// embedding SLA is 5s
	l.Performance(context.Background(), "embedding_generation", 6*time.Second, true)

	breaches := findEvents(store.events, "sla_breach")
	require.Len(t, breaches, 1)
	assert.Equal(t, model.LevelWarn, breaches[0].Level)
	assert.Equal(t, "embedding_generation", breaches[0].Context["operation"])
}

func TestPerformanceWithinSLA(t *testing.T) {
	store := &fakeStore{}
	l := New(zap.NewNop(), store, &fakeAlert{})

	l.Performance(context.Background(), "embedding_generation", time.Second, true)

	assert.Empty(t, findEvents(store.events, "sla_breach"))
}

func TestCostUsageBudgetAlert(t *testing.T) {
	store := &fakeStore{}
	l := New(zap.NewNop(), store, &fakeAlert{})

	l.CostUsage(context.Background(), "batch_processing", 4.9)
	assert.Empty(t, findEvents(store.events, "budget_alert"))

	l.CostUsage(context.Background(), "batch_processing", 5.1)
	alerts := findEvents(store.events, "budget_alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, model.LevelWarn, alerts[0].Level)
}
