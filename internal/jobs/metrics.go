package jobmetrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	corrections *prometheus.CounterVec
	markers     prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker provides lifecycle instrumentation helpers for a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track spawns a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	if m == nil {
		return &Tracker{job: job, start: time.Now()}
	}
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End finalises the tracker, recording duration, success/failure counts and
// returning the provided error untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddStockCorrections counts products whose stock was rewritten from the ledger.
func (m *Metrics) AddStockCorrections(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.corrections.WithLabelValues("stock").Add(float64(count))
}

// AddInvoiceRepairs counts invoices whose paid amount or status was re-derived.
func (m *Metrics) AddInvoiceRepairs(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.corrections.WithLabelValues("invoice").Add(float64(count))
}

// SetPendingMarkers reports the failed or stale pipeline markers found by the last sweep.
func (m *Metrics) SetPendingMarkers(count int) {
	if m == nil {
		return
	}
	m.markers.Set(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	corrections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_reconcile_corrections_total",
		Help: "Records rewritten by the reconcile jobs, by kind.",
	}, []string{"kind"})
	markers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "odyssey_pipeline_pending_markers",
		Help: "Failed or stale pipeline markers seen by the last sweep.",
	})
	registerer.MustRegister(runs, failures, duration, corrections, markers)
	return &Metrics{runs: runs, failures: failures, duration: duration, corrections: corrections, markers: markers}
}
