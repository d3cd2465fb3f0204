// Package metrics registers the Prometheus collectors shared by the
// pipeline stages and the fetch clients. The status server exposes them
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageRows counts rows written per pipeline stage.
	StageRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlbedge",
		Name:      "stage_rows_total",
		Help:      "Rows written per pipeline stage.",
	}, []string{"stage"})

	// StageFailures counts failed stage runs.
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlbedge",
		Name:      "stage_failures_total",
		Help:      "Failed pipeline stage runs.",
	}, []string{"stage"})

	// StageDuration observes wall time per stage run.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mlbedge",
		Name:      "stage_duration_seconds",
		Help:      "Wall time per pipeline stage run.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})

	// FetchErrors counts upstream fetch errors by client.
	FetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlbedge",
		Name:      "fetch_errors_total",
		Help:      "Upstream fetch errors by client.",
	}, []string{"upstream"})

	// AlertsSent counts webhook alerts delivered per market.
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlbedge",
		Name:      "alerts_sent_total",
		Help:      "Webhook alerts delivered per market.",
	}, []string{"market"})
)

// StageTimer starts a duration observation for one stage run.
func StageTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(StageDuration.WithLabelValues(stage))
}
