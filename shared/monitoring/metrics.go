package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every exported metric
const MetricsNamespace = "rae_agent"

// Run results
const (
	ResultSuccess  = "success"
	ResultPartial  = "partial_failure"
	ResultCritical = "critical_failure"
)

// Metrics holds the Prometheus collectors of an agent process.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	ItemsTotal         *prometheus.CounterVec
	RunDurationSeconds prometheus.Histogram
	LastSuccessTime    prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors with reg. A nil reg gets a fresh
// registry so several monitors can coexist in tests.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "runs_total",
				Help:      "Agent runs by result",
			},
			[]string{"agent", "result"},
		),
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: MetricsNamespace,
				Name:      "items_total",
				Help:      "Items processed by the agent, by outcome",
			},
			[]string{"agent", "outcome"},
		),
		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: MetricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of agent runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
			},
		),
		LastSuccessTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: MetricsNamespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful run",
			},
		),
		gatherer: reg,
	}
}
