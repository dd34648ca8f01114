package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	complaintsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaints_created_total",
			Help: "Total number of complaints created",
		},
		[]string{"category", "city"},
	)

	assignmentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_attempts_total",
			Help: "Total number of assignment attempts by outcome",
		},
		[]string{"outcome"},
	)

	statusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "complaint_status_transitions_total",
			Help: "Total number of complaint status transitions",
		},
		[]string{"from_status", "to_status"},
	)

	statusRequestsReviewed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_requests_reviewed_total",
			Help: "Total number of reviewed status change requests",
		},
		[]string{"decision"},
	)

	attendanceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_events_total",
			Help: "Total number of attendance events recorded",
		},
		[]string{"type"},
	)

	officeHoursRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "office_hours_rejections_total",
			Help: "Total number of attendance writes rejected by the office hours gate",
		},
	)

	counterSyncFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "counter_sync_failures_total",
			Help: "Total number of reporter counter updates that failed and were deferred to reconciliation",
		},
	)

	reconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counter_reconcile_runs_total",
			Help: "Total number of counter reconciliation passes",
		},
		[]string{"result"},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
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

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordComplaintCreated records a complaint creation
func RecordComplaintCreated(category, city string) {
	complaintsCreated.WithLabelValues(category, city).Inc()
}

// RecordAssignmentAttempt records an assignment attempt with its outcome,
// either "success" or the rejection reason code.
func RecordAssignmentAttempt(outcome string) {
	assignmentAttempts.WithLabelValues(outcome).Inc()
}

// RecordStatusTransition records a complaint status transition
func RecordStatusTransition(fromStatus, toStatus string) {
	statusTransitions.WithLabelValues(fromStatus, toStatus).Inc()
}

// RecordStatusReview records an approve/reject decision on a pending request
func RecordStatusReview(approved bool) {
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	statusRequestsReviewed.WithLabelValues(decision).Inc()
}

// RecordAttendanceEvent records an accepted attendance event
func RecordAttendanceEvent(eventType string) {
	attendanceEvents.WithLabelValues(eventType).Inc()
}

// RecordOfficeHoursRejection records a gate rejection
func RecordOfficeHoursRejection() {
	officeHoursRejections.Inc()
}

// RecordCounterSyncFailure records a best-effort counter update failure
func RecordCounterSyncFailure() {
	counterSyncFailures.Inc()
}

// RecordReconcileRun records a reconciliation pass result ("ok" or "error")
func RecordReconcileRun(result string) {
	reconcileRuns.WithLabelValues(result).Inc()
}

// RecordDBConnections records active database connections
func RecordDBConnections(count int) {
	dbConnectionsActive.Set(float64(count))
}
