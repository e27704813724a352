package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"famcoord/internal/model"
	"famcoord/pkg/logger"
	"famcoord/pkg/metrics"
)

// Store is the append-only log table.
type Store interface {
	Append(ctx context.Context, e *model.LogEvent) error
}

// AlertSink receives error/critical events. The default sink logs to the
// console; production deployments swap in a pager or webhook sink.
type AlertSink interface {
	Alert(level, category, message string)
}

// slaTable holds per-operation latency budgets. A breach emits a warn event.
var slaTable = map[string]time.Duration{
	"content_analysis":      10 * time.Second,
	"theme_analysis":        10 * time.Second,
	"priority_analysis":     8 * time.Second,
	"action_extraction":     8 * time.Second,
	"embedding_generation":  5 * time.Second,
	"email_pipeline":        45 * time.Second,
	"batch_processing":      30 * time.Minute,
	"pattern_discovery":     5 * time.Minute,
	"pattern_characterize":  15 * time.Second,
	"email_fetch":           2 * time.Minute,
}

// costBudgetCents is the per-operation cost alert threshold.
const costBudgetCents = 5.0

// Ledger is the single observability entry point used by every stage and the
// orchestrator. None of its methods ever return or propagate an error:
// logging failures are swallowed so they can never abort the pipeline they
// are observing.
type Ledger struct {
	log   *zap.Logger
	store Store
	alert AlertSink
}

func New(log *zap.Logger, store Store, alert AlertSink) *Ledger {
	if alert == nil {
		alert = &consoleAlertSink{log: log}
	}
	return &Ledger{log: log, store: store, alert: alert}
}

// Event records one structured log event: console emission, append to the
// log store, and the alert path for error/critical levels.
func (l *Ledger) Event(ctx context.Context, level, category, message string, err error, kv map[string]string) {
	defer func() {
		_ = recover()
	}()

	fields := []zap.Field{zap.String("category", category)}
	for k, v := range kv {
		fields = append(fields, zap.String(k, v))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	log := logger.WithTrace(ctx, l.log)
	switch level {
	case model.LevelDebug:
		log.Debug(message, fields...)
	case model.LevelWarn:
		log.Warn(message, fields...)
	case model.LevelError, model.LevelCritical:
		log.Error(message, fields...)
	default:
		log.Info(message, fields...)
	}

	event := &model.LogEvent{
		Level:    level,
		Category: category,
		Message:  message,
		Context:  kv,
	}
	if err != nil {
		event.ErrorDetails = err.Error()
	}
	if l.store != nil {
		if appendErr := l.store.Append(ctx, event); appendErr != nil {
			// swallowed: the ledger never fails its caller
			l.log.Warn("Failed to append log event", zap.Error(appendErr))
		}
	}

	if level == model.LevelError || level == model.LevelCritical {
		l.alert.Alert(level, category, message)
	}
}

// Performance records an operation's duration, checks it against the SLA
// table, and emits a warn breach event when exceeded.
func (l *Ledger) Performance(ctx context.Context, operation string, duration time.Duration, success bool) {
	defer func() {
		_ = recover()
	}()

	status := "success"
	if !success {
		status = "failed"
	}

	l.Event(ctx, model.LevelDebug, "performance", fmt.Sprintf("%s took %s", operation, duration), nil, map[string]string{
		"operation":   operation,
		"duration_ms": fmt.Sprintf("%d", duration.Milliseconds()),
		"status":      status,
	})

	if sla, ok := slaTable[operation]; ok && duration > sla {
		l.Event(ctx, model.LevelWarn, "sla_breach",
			fmt.Sprintf("%s exceeded SLA: %s > %s", operation, duration, sla), nil,
			map[string]string{
				"operation":   operation,
				"duration_ms": fmt.Sprintf("%d", duration.Milliseconds()),
				"sla_ms":      fmt.Sprintf("%d", sla.Milliseconds()),
			})
	}
}

// CostUsage records the cost estimate of one cost-incurring operation and
// raises a budget alert when a single operation exceeds the fixed threshold.
func (l *Ledger) CostUsage(ctx context.Context, operation string, costCents float64) {
	defer func() {
		_ = recover()
	}()

	metrics.AddCostCents(operation, costCents)

	l.Event(ctx, model.LevelInfo, "cost", fmt.Sprintf("%s cost %.4f cents", operation, costCents), nil, map[string]string{
		"operation":  operation,
		"cost_cents": fmt.Sprintf("%.4f", costCents),
	})

	if costCents > costBudgetCents {
		l.Event(ctx, model.LevelWarn, "budget_alert",
			fmt.Sprintf("%s cost %.4f cents exceeds budget of %.2f", operation, costCents, costBudgetCents), nil,
			map[string]string{
				"operation":  operation,
				"cost_cents": fmt.Sprintf("%.4f", costCents),
			})
	}
}

type consoleAlertSink struct {
	log *zap.Logger
}

func (s *consoleAlertSink) Alert(level, category, message string) {
	s.log.Error("ALERT",
		zap.String("level", level),
		zap.String("category", category),
		zap.String("message", message),
	)
}
