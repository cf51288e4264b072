package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the sync engine
type Metrics struct {
	// SyncRuns counts sync runs by outcome (success, degraded, failed)
	SyncRuns *prometheus.CounterVec
	// SyncDuration tracks the wall-clock duration of sync runs
	SyncDuration prometheus.Histogram
	// ActivitiesPersisted counts activities written to the store
	ActivitiesPersisted prometheus.Counter
	// KudosPersisted counts kudos entries written to the store
	KudosPersisted prometheus.Counter
	// RowFailures counts records skipped by the per-row fallback path
	RowFailures *prometheus.CounterVec
	// APIRequests counts remote API calls by endpoint and status class
	APIRequests *prometheus.CounterVec
	// TokenRefreshes counts token refresh attempts by outcome
	TokenRefreshes *prometheus.CounterVec
	// LastWatermark exposes the current watermark as a unix timestamp
	LastWatermark prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SyncRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_runs_total",
				Help:      "Total number of sync runs by outcome",
			},
			[]string{"outcome"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_duration_seconds",
				Help:      "Wall-clock duration of sync runs in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		ActivitiesPersisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "activities_persisted_total",
				Help:      "Total number of activities written to the local store",
			},
		),
		KudosPersisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kudos_persisted_total",
				Help:      "Total number of kudos entries written to the local store",
			},
		),
		RowFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "row_failures_total",
				Help:      "Total number of records skipped by the per-row fallback",
			},
			[]string{"table"},
		),
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of remote API requests",
			},
			[]string{"endpoint", "status"},
		),
		TokenRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refreshes_total",
				Help:      "Total number of token refresh attempts",
			},
			[]string{"outcome"},
		),
		LastWatermark: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_watermark_timestamp_seconds",
				Help:      "Unix timestamp of the current sync watermark",
			},
		),
	}

	registry.MustRegister(
		m.SyncRuns,
		m.SyncDuration,
		m.ActivitiesPersisted,
		m.KudosPersisted,
		m.RowFailures,
		m.APIRequests,
		m.TokenRefreshes,
		m.LastWatermark,
	)

	return m
}

// RecordRun records the outcome and duration of one sync run.
func (m *Metrics) RecordRun(outcome string, duration time.Duration) {
	m.SyncRuns.WithLabelValues(outcome).Inc()
	m.SyncDuration.Observe(duration.Seconds())
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry for testing.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
