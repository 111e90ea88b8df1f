package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	salesTotal      *prometheus.CounterVec
	batchesRoasted  prometheus.Counter
	unitsPackaged   prometheus.Counter
	transfersMoved  prometheus.Counter
	adjustmentsOpen prometheus.Gauge
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roastery_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roastery_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	sales := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roastery_sales_total",
		Help: "Completed sales by payment method.",
	}, []string{"payment_method"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roastery_batches_roasted_total",
		Help: "Roast batches finished.",
	})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roastery_units_packaged_total",
		Help: "Packaged units produced by allocations.",
	})
	transfers := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roastery_transfers_completed_total",
		Help: "Stock transfers completed.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roastery_adjustments_pending",
		Help: "Stock adjustments awaiting manager approval.",
	})
	registry.MustRegister(requests, duration, sales, batches, units, transfers, pending)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		salesTotal:      sales,
		batchesRoasted:  batches,
		unitsPackaged:   units,
		transfersMoved:  transfers,
		adjustmentsOpen: pending,
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

// Middleware records request metrics for every HTTP request.
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

// RecordSale counts a completed checkout.
func (m *Metrics) RecordSale(paymentMethod string) {
	if m == nil {
		return
	}
	m.salesTotal.WithLabelValues(paymentMethod).Inc()
}

// RecordBatchFinished counts a finished roast batch.
func (m *Metrics) RecordBatchFinished() {
	if m == nil {
		return
	}
	m.batchesRoasted.Inc()
}

// RecordUnitsPackaged counts packaged units from an allocation.
func (m *Metrics) RecordUnitsPackaged(count int) {
	if m == nil {
		return
	}
	m.unitsPackaged.Add(float64(count))
}

// RecordTransferCompleted counts a completed transfer.
func (m *Metrics) RecordTransferCompleted() {
	if m == nil {
		return
	}
	m.transfersMoved.Inc()
}

// SetPendingAdjustments tracks the approval backlog.
func (m *Metrics) SetPendingAdjustments(count int) {
	if m == nil {
		return
	}
	m.adjustmentsOpen.Set(float64(count))
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
