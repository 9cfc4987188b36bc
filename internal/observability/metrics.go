package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	ledgerWrites    *prometheus.CounterVec
	ledgerRejects   *prometheus.CounterVec
	lowStockAlerts  *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockroom_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_ledger_transactions_total",
		Help: "Committed stock transactions by type.",
	}, []string{"type"})
	rejects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_ledger_rejections_total",
		Help: "Rejected stock transactions by reason.",
	}, []string{"reason"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockroom_low_stock_alerts_total",
		Help: "Low-stock alerts by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, writes, rejects, alerts)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		ledgerWrites:    writes,
		ledgerRejects:   rejects,
		lowStockAlerts:  alerts,
	}
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

// Middleware records metrics for every HTTP request.
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

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// TransactionRecorded counts a committed ledger write.
func (m *Metrics) TransactionRecorded(txType string) {
	if m == nil {
		return
	}
	m.ledgerWrites.WithLabelValues(txType).Inc()
}

// TransactionRejected counts a refused ledger write.
func (m *Metrics) TransactionRejected(reason string) {
	if m == nil {
		return
	}
	m.ledgerRejects.WithLabelValues(reason).Inc()
}

// LowStockAlert counts an alert outcome (queued, throttled, failed, disabled).
func (m *Metrics) LowStockAlert(outcome string) {
	if m == nil {
		return
	}
	m.lowStockAlerts.WithLabelValues(outcome).Inc()
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
