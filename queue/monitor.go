package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/noteforge/beatqueue/batch"
)

// AlertLevel distinguishes actionable-soon from actionable-now.
type AlertLevel string

const (
	LevelWarning  AlertLevel = "warning"
	LevelCritical AlertLevel = "critical"
)

// Alert is one threshold breach surfaced by the monitor.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Metric    string     `json:"metric"`
	Threshold float64    `json:"threshold"`
	Api       string     `json:"api,omitempty"`
	Endpoint  string     `json:"endpoint,omitempty"`
}

// RateLimitMetric is the per-(api,endpoint) snapshot in HealthReport.
type RateLimitMetric struct {
	Api              string    `json:"api"`
	Endpoint         string    `json:"endpoint"`
	Remaining        int       `json:"remaining"`
	Limit            int       `json:"limit"`
	RemainingPercent float64   `json:"remaining_percent"`
	ResetAt          time.Time `json:"reset_at"`
}

// Metrics is the set of health signals the monitor samples every tick.
type Metrics struct {
	DeadLetterItems24h int               `json:"dead_letter_items_24h"`
	ErrorBatches24h    int               `json:"error_batches_24h"`
	StalledBatches     int               `json:"stalled_batches"`
	QueueDepths        []QueueDepth      `json:"queue_depths"`
	RateLimits         []RateLimitMetric `json:"rate_limits"`
}

// HealthReport is the monitor's per-invocation output (C7).
type HealthReport struct {
	Timestamp time.Time `json:"timestamp"`
	Alerts    []Alert   `json:"alerts"`
	Metrics   Metrics   `json:"metrics"`
	Actions   []string  `json:"actions,omitempty"`
}

// Threshold constants from §4.7.
const (
	ThresholdDeadLetterItems24h = 10
	ThresholdErrorBatches24h    = 20
	ThresholdStalledBatches     = 5
	ThresholdRateLimitPercent   = 20
	stalledAfter                = 30 * time.Minute
)

// AlertSink fans alerts out to an external channel. The default sink
// only logs — alert fan-out proper is out of scope (§1) and is treated
// as a pluggable external collaborator.
type AlertSink interface {
	Send(ctx context.Context, alerts []Alert) error
}

// LogSink is the default, log-only AlertSink.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(ctx context.Context, alerts []Alert) error {
	for _, a := range alerts {
		s.log.Warn("alert", "level", a.Level, "message", a.Message, "metric", a.Metric)
	}
	return nil
}

// Monitor samples health metrics, raises alerts by threshold, and
// triggers targeted auto-remediation for critical conditions (C7).
type Monitor struct {
	store Store
	sink  AlertSink
	log   *slog.Logger

	now func() time.Time
}

// NewMonitor constructs a Monitor. Auto-remediation goes through the
// store's ResetExpired primitive directly — the monitor never runs the
// full maintenance sequence.
func NewMonitor(store Store, sink AlertSink, log *slog.Logger) *Monitor {
	return &Monitor{
		store: store,
		sink:  sink,
		log:   log,
		now:   time.Now,
	}
}

// Check assembles one HealthReport: it samples every metric through
// the Store's canonical counting primitives (never len() of a fetched
// page — see the design notes' fourth open question), raises alerts by
// threshold, and, if any critical alert is present and stalled batches
// exist, invokes reset_expired as auto-remediation and records the
// action.
func (m *Monitor) Check(ctx context.Context) (*HealthReport, error) {
	now := m.now()
	report := &HealthReport{Timestamp: now}

	since24h := now.Add(-24 * time.Hour)
	dlq24h, err := m.store.CountDeadLetterSince(ctx, since24h)
	if err != nil {
		return nil, fmt.Errorf("count dead letter: %w", err)
	}
	errBatches24h, err := m.store.CountErrorBatchesSince(ctx, since24h)
	if err != nil {
		return nil, fmt.Errorf("count error batches: %w", err)
	}
	stalled, err := m.store.CountStalled(ctx, now.Add(-stalledAfter))
	if err != nil {
		return nil, fmt.Errorf("count stalled: %w", err)
	}
	depths, err := m.store.QueueDepths(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}
	rateLimits, err := m.store.AllRateLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limits: %w", err)
	}

	report.Metrics = Metrics{
		DeadLetterItems24h: dlq24h,
		ErrorBatches24h:    errBatches24h,
		StalledBatches:     stalled,
		QueueDepths:        depths,
		RateLimits:         toRateLimitMetrics(rateLimits),
	}

	report.Alerts = m.evaluateAlerts(report.Metrics)

	exhaustedDLQ, err := m.store.CountExhaustedDLQ(ctx)
	if err != nil {
		return nil, fmt.Errorf("count exhausted dlq: %w", err)
	}
	recordMetrics(report, exhaustedDLQ)

	if m.hasCritical(report.Alerts) && stalled > 0 {
		reset, err := m.store.ResetExpired(ctx, DefaultExpiryMinutes)
		if err != nil {
			m.log.Error("auto-remediation reset_expired failed", "err", err)
		} else {
			report.Actions = append(report.Actions, "reset_stalled_batches")
			m.log.Info("auto-remediation: reset_stalled_batches", "count", reset)
		}
	}

	if len(report.Alerts) > 0 {
		if err := m.sink.Send(ctx, report.Alerts); err != nil {
			m.log.Error("alert sink failed", "err", err)
		}
	}

	return report, nil
}

func (m *Monitor) evaluateAlerts(metrics Metrics) []Alert {
	var alerts []Alert

	if metrics.DeadLetterItems24h > ThresholdDeadLetterItems24h {
		alerts = append(alerts, Alert{
			Level:     LevelWarning,
			Message:   "dead letter items in the last 24h exceed threshold",
			Metric:    "dead_letter_items_24h",
			Threshold: ThresholdDeadLetterItems24h,
		})
	}
	if metrics.ErrorBatches24h > ThresholdErrorBatches24h {
		alerts = append(alerts, Alert{
			Level:     LevelWarning,
			Message:   "error batches in the last 24h exceed threshold",
			Metric:    "error_batches_24h",
			Threshold: ThresholdErrorBatches24h,
		})
	}
	if metrics.StalledBatches > ThresholdStalledBatches {
		alerts = append(alerts, Alert{
			Level:     LevelCritical,
			Message:   "batches stalled in processing for over 30 minutes",
			Metric:    "stalled_batches",
			Threshold: ThresholdStalledBatches,
		})
	}
	for _, rl := range metrics.RateLimits {
		if rl.RemainingPercent < ThresholdRateLimitPercent {
			alerts = append(alerts, Alert{
				Level:     LevelWarning,
				Message:   "rate limit budget running low",
				Metric:    "rate_limit_remaining_percent",
				Threshold: ThresholdRateLimitPercent,
				Api:       rl.Api,
				Endpoint:  rl.Endpoint,
			})
		}
	}
	return alerts
}

func (m *Monitor) hasCritical(alerts []Alert) bool {
	for _, a := range alerts {
		if a.Level == LevelCritical {
			return true
		}
	}
	return false
}

func toRateLimitMetrics(rls []*batch.RateLimit) []RateLimitMetric {
	out := make([]RateLimitMetric, 0, len(rls))
	for _, rl := range rls {
		out = append(out, RateLimitMetric{
			Api:              rl.ApiName,
			Endpoint:         rl.Endpoint,
			Remaining:        rl.RequestsRemaining,
			Limit:            rl.RequestsLimit,
			RemainingPercent: rl.RemainingPercent(),
			ResetAt:          rl.ResetAt,
		})
	}
	return out
}
