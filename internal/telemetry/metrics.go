package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus instruments. Each instance owns its
// registry so tests can build several side by side.
type Metrics struct {
	Registry        *prometheus.Registry
	ProgressUpdates *prometheus.CounterVec
	SummaryReads    prometheus.Counter
	HTTPRequests    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ProgressUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktracker",
			Name:      "progress_updates_total",
			Help:      "Task progress updates by outcome.",
		}, []string{"outcome"}),
		SummaryReads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tasktracker",
			Name:      "progress_summary_reads_total",
			Help:      "Progress summaries computed.",
		}),
		HTTPRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tasktracker",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		m.ProgressUpdates,
		m.SummaryReads,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveUpdate counts one mutation outcome; nil receivers are ignored.
func (m *Metrics) ObserveUpdate(outcome string) {
	if m == nil {
		return
	}
	m.ProgressUpdates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSummary() {
	if m == nil {
		return
	}
	m.SummaryReads.Inc()
}
