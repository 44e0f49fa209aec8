// Package metrics provides prometheus instrumentation of content checks and prayer submissions.
// Collectors are registered on a dedicated registry, so several instances can live in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// check modes
const (
	ModeFull  = "full"
	ModeQuick = "quick"
)

// submission results
const (
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
	SubmissionFailed   = "failed"
)

// Metrics keeps all collectors of the service
type Metrics struct {
	registry      *prometheus.Registry
	checks        *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	submissions   *prometheus.CounterVec
}

// New makes Metrics with a fresh registry. cacheSize reports the current size of the filter cache, nil skips the gauge.
func New(cacheSize func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prayers_checks_total",
			Help: "Total number of content checks",
		}, []string{"mode", "result"}), // result = "pass" or "reject"
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "prayers_check_duration_seconds",
			Help:    "Content check latency in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"mode"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prayers_submissions_total",
			Help: "Total number of prayer submissions",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.checks, m.checkDuration, m.submissions,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cacheSize != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "prayers_filter_cache_entries",
			Help: "Current number of cached content check results",
		}, func() float64 { return float64(cacheSize()) }))
	}
	return m
}

// Check records a content check of the given mode
func (m *Metrics) Check(mode string, passed bool, took time.Duration) {
	result := "pass"
	if !passed {
		result = "reject"
	}
	m.checks.WithLabelValues(mode, result).Inc()
	m.checkDuration.WithLabelValues(mode).Observe(took.Seconds())
}

// Submission records a result of prayer submission
func (m *Metrics) Submission(result string) {
	m.submissions.WithLabelValues(result).Inc()
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the prometheus metrics HTTP handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
