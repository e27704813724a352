package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Per-stage pipeline latency in milliseconds.
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_latency_ms",
			Help:    "Per-email analysis stage latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"stage", "source"}, // source: model, fallback
	)

	// Model service call latency in milliseconds.
	ModelCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_call_latency_ms",
			Help:    "Model service call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"endpoint", "status"},
	)

	// Whole-job duration in seconds.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processing_job_duration_seconds",
			Help:    "End-to-end processing job duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
		},
		[]string{"batch_type", "status"},
	)

	// Database query latency in seconds.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	EmailsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_processed_count",
			Help: "Total number of emails run through the analysis pipeline",
		},
		[]string{"status"}, // status: success, failed, skipped
	)

	StageFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_fallback_count",
			Help: "Total number of stage executions that fell back to heuristics",
		},
		[]string{"stage"},
	)

	PatternsDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patterns_discovered_count",
			Help: "Total number of family patterns persisted",
		},
		[]string{"fallback"}, // fallback: true, false
	)

	CostCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_cost_cents_total",
			Help: "Accumulated model and embedding cost estimate in cents",
		},
		[]string{"operation"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
		[]string{"sql"},
	)
)

func RecordStageLatency(stage, source string, duration time.Duration) {
	StageLatency.WithLabelValues(stage, source).Observe(float64(duration.Milliseconds()))
}

func RecordModelCallLatency(endpoint, status string, duration time.Duration) {
	ModelCallLatency.WithLabelValues(endpoint, status).Observe(float64(duration.Milliseconds()))
}

func RecordJobDuration(batchType, status string, duration time.Duration) {
	JobDuration.WithLabelValues(batchType, status).Observe(duration.Seconds())
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementEmailsProcessed(status string) {
	EmailsProcessed.WithLabelValues(status).Inc()
}

func IncrementStageFallback(stage string) {
	StageFallbacks.WithLabelValues(stage).Inc()
}

func IncrementPatternsDiscovered(fallback bool) {
	label := "false"
	if fallback {
		label = "true"
	}
	PatternsDiscovered.WithLabelValues(label).Inc()
}

func AddCostCents(operation string, cents float64) {
	CostCents.WithLabelValues(operation).Add(cents)
}

func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
}
