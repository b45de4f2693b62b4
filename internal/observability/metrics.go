package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	settlementsTotal     *prometheus.CounterVec
	ledgerEntriesTotal   *prometheus.CounterVec
	anomaliesTotal       *prometheus.CounterVec
	plannerOrdersTotal   prometheus.Counter
	plannerLineItemTotal prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shieldfield_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shieldfield_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shieldfield_settlements_total",
		Help: "Settled purchase orders by movement type.",
	}, []string{"movement"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shieldfield_ledger_entries_total",
		Help: "Transaction log entries appended, by movement type.",
	}, []string{"movement"})
	anomalies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "shieldfield_integrity_anomalies_total",
		Help: "Data integrity anomalies observed during settlement and consumption.",
	}, []string{"kind"})
	plannerOrders := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shieldfield_replenishment_orders_total",
		Help: "Purchase orders created by the replenishment planner.",
	})
	plannerLines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "shieldfield_replenishment_line_items_total",
		Help: "Line items created by the replenishment planner.",
	})
	registry.MustRegister(requests, duration, settlements, entries, anomalies, plannerOrders, plannerLines)
	return &Metrics{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:        requests,
		requestDuration:      duration,
		settlementsTotal:     settlements,
		ledgerEntriesTotal:   entries,
		anomaliesTotal:       anomalies,
		plannerOrdersTotal:   plannerOrders,
		plannerLineItemTotal: plannerLines,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
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

// ObserveSettlement counts one settlement and its appended entries.
func (m *Metrics) ObserveSettlement(movement string, entries int) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(movement).Inc()
	m.ledgerEntriesTotal.WithLabelValues(movement).Add(float64(entries))
}

// ObserveEntries counts appended ledger entries outside of settlement.
func (m *Metrics) ObserveEntries(movement string, entries int) {
	if m == nil {
		return
	}
	m.ledgerEntriesTotal.WithLabelValues(movement).Add(float64(entries))
}

// ObserveAnomaly counts one data integrity anomaly.
func (m *Metrics) ObserveAnomaly(kind string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(kind).Inc()
}

// ObservePlannerRun counts the output of a replenishment pass.
func (m *Metrics) ObservePlannerRun(orders, lineItems int) {
	if m == nil {
		return
	}
	m.plannerOrdersTotal.Add(float64(orders))
	m.plannerLineItemTotal.Add(float64(lineItems))
}

// Registerer exposes the registry for custom metric registration.
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
