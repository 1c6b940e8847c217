package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthFailuresTotal       *prometheus.CounterVec
	PermissionDenialsTotal  *prometheus.CounterVec
	RateLimitRejections     *prometheus.CounterVec
	TokenRevocationsTotal   *prometheus.CounterVec
	RevocationCacheHitTotal prometheus.Counter

	// Domain metrics
	ExpenseTransitionsTotal *prometheus.CounterVec
	DocumentBytesUploaded   prometheus.Counter
	NotificationsCreated    *prometheus.CounterVec

	// Storage metrics
	BlobOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buildpro_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_auth_failures_total",
				Help: "Rejected credentials by reason",
			},
			[]string{"reason"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_permission_denials_total",
				Help: "Project capability checks that failed",
			},
			[]string{"capability"},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
		TokenRevocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_token_revocations_total",
				Help: "Tokens revoked by type",
			},
			[]string{"token_type"},
		),
		RevocationCacheHitTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "buildpro_revocation_cache_hits_total",
				Help: "Revocation lookups answered from cache",
			},
		),
		ExpenseTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_expense_transitions_total",
				Help: "Expense state transitions by target status",
			},
			[]string{"to"},
		),
		DocumentBytesUploaded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "buildpro_document_bytes_uploaded_total",
				Help: "Total bytes of uploaded documents",
			},
		),
		NotificationsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_notifications_created_total",
				Help: "Notifications created by type",
			},
			[]string{"type"},
		),
		BlobOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buildpro_blob_operations_total",
				Help: "Object storage operations",
			},
			[]string{"operation", "backend", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthFailuresTotal,
		m.PermissionDenialsTotal,
		m.RateLimitRejections,
		m.TokenRevocationsTotal,
		m.RevocationCacheHitTotal,
		m.ExpenseTransitionsTotal,
		m.DocumentBytesUploaded,
		m.NotificationsCreated,
		m.BlobOperationsTotal,
	)

	return m
}

// NewNopMetrics returns metrics registered against a throwaway registry.
// Used by tests and by components constructed without a metrics sink.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeTemplate keeps label cardinality bounded by using the mux template
// instead of the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
