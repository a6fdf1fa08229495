package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	pipelineSteps   *prometheus.CounterVec
	documentWrites  *prometheus.CounterVec
	stockReconciled prometheus.Counter
}

// NewMetrics builds a private registry with the HTTP, pipeline and document collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_pipeline_steps_total",
		Help: "Executed pipeline steps by pipeline, step and outcome.",
	}, []string{"pipeline", "step", "outcome"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_document_writes_total",
		Help: "Accepted document write requests by method.",
	}, []string{"method"})
	reconciled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_stock_reconciled_total",
		Help: "Products whose cached stock was rewritten to the ledger sum.",
	})
	registry.MustRegister(requests, duration, steps, writes, reconciled)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		pipelineSteps:   steps,
		documentWrites:  writes,
		stockReconciled: reconciled,
	}
}

// ObserveStep counts one pipeline step execution.
func (m *Metrics) ObserveStep(pipeline, step, outcome string) {
	if m == nil {
		return
	}
	// per-line step names carry a product id suffix
	if i := strings.IndexByte(step, ':'); i > 0 {
		step = step[:i]
	}
	m.pipelineSteps.WithLabelValues(pipeline, step, outcome).Inc()
}

// StockReconciled counts one product stock correction.
func (m *Metrics) StockReconciled(string, float64) {
	if m == nil {
		return
	}
	m.stockReconciled.Inc()
}

// DocumentWrite counts a successful mutating request.
func (m *Metrics) DocumentWrite(method string) {
	if m == nil {
		return
	}
	m.documentWrites.WithLabelValues(method).Inc()
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records count and latency for every request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
