// Package metrics collects per-invocation Prometheus metrics for the route
// table tool. Each process run fills one registry and, when configured,
// writes it out for the node exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "i2check"

// Query results, used as the "result" label.
const (
	ResultPass  = "pass"
	ResultFail  = "fail"
	ResultError = "error"
)

// Metrics holds the collectors for one invocation.
type Metrics struct {
	registry *prometheus.Registry

	RoutesLoaded  prometheus.Gauge
	LinesRejected prometheus.Gauge
	TableBytes    prometheus.Gauge
	BuildDuration prometheus.Gauge
	LastRun       *prometheus.GaugeVec
	Queries       *prometheus.CounterVec
}

// New creates the collectors and registers them in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoutesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routes_loaded",
			Help:      "Routes accepted by the last table build.",
		}),
		LinesRejected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lines_rejected",
			Help:      "Route lines rejected as malformed by the last table build.",
		}),
		TableBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_bytes",
			Help:      "Size of the table file written or read.",
		}),
		BuildDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of the last table build.",
		}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last run, by mode.",
		}, []string{"mode"}),
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Membership queries answered, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.RoutesLoaded,
		m.LinesRejected,
		m.TableBytes,
		m.BuildDuration,
		m.LastRun,
		m.Queries,
	)
	return m
}

// Registry returns the registry holding this invocation's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MarkRun records the time of a run in the given mode.
func (m *Metrics) MarkRun(mode string, now time.Time) {
	m.LastRun.WithLabelValues(mode).Set(float64(now.UnixNano()) / 1e9)
}

// WriteTextfile atomically writes the registry in Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
