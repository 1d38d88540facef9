package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics gauges mirror HealthReport.Metrics's counters and per-(api,
// endpoint) rate-limit percentages so that a Prometheus scrape and the
// JSON monitor response agree on them; queue depths are not exported.
// exhaustedDLQItems has no HealthReport counterpart.
var (
	deadLetterItems24h = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beatqueue_dead_letter_items_24h",
		Help: "Dead-letter items created in the last 24 hours.",
	})
	errorBatches24h = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beatqueue_error_batches_24h",
		Help: "Batches that reached status=error within the last 24 hours.",
	})
	stalledBatchesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beatqueue_stalled_batches",
		Help: "Batches in processing for more than 30 minutes.",
	})
	rateLimitRemainingPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "beatqueue_rate_limit_remaining_percent",
		Help: "Remaining request budget, as a percentage, per (api, endpoint).",
	}, []string{"api", "endpoint"})
	exhaustedDLQItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beatqueue_dlq_exhausted_items",
		Help: "Dead-letter items that have reached the requeue cap and will never be selected again.",
	})
)

// recordMetrics mirrors one HealthReport's numbers into the process's
// Prometheus registry.
func recordMetrics(report *HealthReport, exhaustedDLQ int) {
	deadLetterItems24h.Set(float64(report.Metrics.DeadLetterItems24h))
	errorBatches24h.Set(float64(report.Metrics.ErrorBatches24h))
	stalledBatchesGauge.Set(float64(report.Metrics.StalledBatches))
	exhaustedDLQItems.Set(float64(exhaustedDLQ))
	for _, rl := range report.Metrics.RateLimits {
		rateLimitRemainingPercent.WithLabelValues(rl.Api, rl.Endpoint).Set(rl.RemainingPercent)
	}
}
