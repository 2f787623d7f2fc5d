package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the console.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	reconciliations  *prometheus.CounterVec
}

// NewMetrics initialises a private registry with the console metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmdesk_http_requests_total",
		Help: "HTTP requests served by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmdesk_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	upstream := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmdesk_upstream_requests_total",
		Help: "Calls to the CRM API by method and outcome.",
	}, []string{"method", "outcome"})
	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmdesk_upstream_request_duration_seconds",
		Help:    "CRM API call duration including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crmdesk_invoice_reconciliations_total",
		Help: "Invoice reconciliation attempts by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, upstream, upstreamDuration, reconciliations)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		upstreamTotal:    upstream,
		upstreamDuration: upstreamDuration,
		reconciliations:  reconciliations,
	}
}

// Handler serves /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request by chi route pattern.
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

// ObserveUpstream records one CRM API call.
func (m *Metrics) ObserveUpstream(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(method, outcome).Inc()
	m.upstreamDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveReconciliation records the result of one reconciliation pass
// ("noop", "paid", "conflict", "failed").
func (m *Metrics) ObserveReconciliation(result string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(result).Inc()
}

// Registerer exposes the registry so other packages can add collectors.
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
