// Package metrics exposes prometheus instrumentation for analysis runs,
// ingestion and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harrison/fragility/internal/models"
)

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry        *prometheus.Registry
	builds          *prometheus.CounterVec
	buildDuration   prometheus.Histogram
	readFailures    prometheus.Counter
	persistFailures prometheus.Counter
	ingested        *prometheus.CounterVec
	requests        *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fragility_report_builds_total",
				Help: "Persisted fragility reports by classification label.",
			},
			[]string{"label"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fragility_report_build_duration_seconds",
				Help:    "Time to read, score and persist one report.",
				Buckets: prometheus.DefBuckets,
			},
		),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragility_report_read_failures_total",
			Help: "Runs aborted because the event store could not be read.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fragility_report_persist_failures_total",
			Help: "Computed reports that could not be persisted.",
		}),
		ingested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fragility_events_ingested_total",
				Help: "Events appended to the store by action.",
			},
			[]string{"action"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fragility_http_requests_total",
				Help: "HTTP API requests by route, method and status code.",
			},
			[]string{"route", "method", "code"},
		),
	}

	m.registry.MustRegister(
		m.builds,
		m.buildDuration,
		m.readFailures,
		m.persistFailures,
		m.ingested,
		m.requests,
	)
	return m
}

// ObserveBuild records a persisted report
func (m *Metrics) ObserveBuild(label models.Label, d time.Duration) {
	m.builds.WithLabelValues(string(label)).Inc()
	m.buildDuration.Observe(d.Seconds())
}

// IncReadFailure counts a run that failed to read its snapshot
func (m *Metrics) IncReadFailure() { m.readFailures.Inc() }

// IncPersistFailure counts a report lost to a persistence error
func (m *Metrics) IncPersistFailure() { m.persistFailures.Inc() }

// ObserveIngest counts appended events by action
func (m *Metrics) ObserveIngest(events []models.Event) {
	for _, e := range events {
		m.ingested.WithLabelValues(e.Action).Inc()
	}
}

// ObserveRequest counts one HTTP request
func (m *Metrics) ObserveRequest(route, method string, code int) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
