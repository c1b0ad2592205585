// Package metrics provides Prometheus instrumentation for the data room
// server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the server.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	UploadsTotal     *prometheus.CounterVec
	UploadBytesTotal prometheus.Counter

	PromotionsTotal      prometheus.Counter
	PromotionFailures    prometheus.Counter
	PromotionPendingDocs prometheus.Gauge
	PromotionDuration    prometheus.Histogram

	ReconcileRunsTotal       prometheus.Counter
	ReconcileRoomsFixedTotal prometheus.Counter
	ScratchOrphansRemoved    prometheus.Counter
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dataroom_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dataroom_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dataroom_uploads_total",
			Help: "Total number of document uploads by outcome.",
		}, []string{"outcome"}),

		UploadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataroom_upload_bytes_total",
			Help: "Total number of bytes received across accepted uploads.",
		}),

		PromotionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataroom_promotions_total",
			Help: "Total number of documents promoted to the content store.",
		}),

		PromotionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataroom_promotion_failures_total",
			Help: "Total number of failed promotion attempts.",
		}),

		PromotionPendingDocs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dataroom_promotion_pending_documents",
			Help: "Number of documents awaiting promotion at the last worker run.",
		}),

		PromotionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dataroom_promotion_duration_seconds",
			Help:    "Time spent promoting a single document.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),

		ReconcileRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataroom_reconcile_runs_total",
			Help: "Total number of counter reconciliation runs.",
		}),

		ReconcileRoomsFixedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataroom_reconcile_rooms_fixed_total",
			Help: "Total number of rooms whose counters were repaired.",
		}),

		ScratchOrphansRemoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "dataroom_scratch_orphans_removed_total",
			Help: "Total number of orphaned scratch files removed by the sweeper.",
		}),
	}
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware instruments HTTP requests with request count and latency.
// The route label uses the chi route pattern, not the raw path, to keep
// cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}

		m.RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		m.RequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
