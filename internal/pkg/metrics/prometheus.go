package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthsync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthsync",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "healthsync",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Sync metrics
	syncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthsync",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Total number of sync runs per vendor and outcome",
		},
		[]string{"vendor", "status"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthsync",
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of a single device sync in seconds",
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"vendor"},
	)

	syncDataPoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthsync",
			Subsystem: "sync",
			Name:      "data_points_total",
			Help:      "Total number of health data points ingested",
		},
		[]string{"vendor", "data_type"},
	)

	// Token refresh metrics
	tokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthsync",
			Subsystem: "token",
			Name:      "refreshes_total",
			Help:      "Total number of OAuth token refreshes per vendor and outcome",
		},
		[]string{"vendor", "status"},
	)

	// Scheduler metrics
	schedulerPassTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthsync",
			Subsystem: "scheduler",
			Name:      "passes_total",
			Help:      "Total number of background scheduler passes",
		},
		[]string{"pass", "status"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthsync",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "table"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		// Get route pattern from chi
		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSync records a completed sync attempt for a vendor
func RecordSync(vendor, status string, duration time.Duration) {
	syncTotal.WithLabelValues(vendor, status).Inc()
	syncDuration.WithLabelValues(vendor).Observe(duration.Seconds())
}

// RecordDataPoints records the number of data points ingested for a data type
func RecordDataPoints(vendor, dataType string, count int) {
	syncDataPoints.WithLabelValues(vendor, dataType).Add(float64(count))
}

// RecordTokenRefresh records a token refresh attempt
func RecordTokenRefresh(vendor, status string) {
	tokenRefreshTotal.WithLabelValues(vendor, status).Inc()
}

// RecordSchedulerPass records a background pass outcome
func RecordSchedulerPass(pass, status string) {
	schedulerPassTotal.WithLabelValues(pass, status).Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(operation, table string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}
