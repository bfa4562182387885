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

// Histogram bucket definitions.
var (
	httpDurationBuckets   = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	engineDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets       = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the console.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Session metrics
	SessionsCreatedTotal *prometheus.CounterVec
	SessionsActive       *prometheus.GaugeVec
	SessionsExpiredTotal prometheus.Counter
	SessionsResumedTotal prometheus.Counter

	// Plan metrics
	PlanMutationsTotal *prometheus.CounterVec
	PlanSize           *prometheus.HistogramVec

	// Commit metrics
	ValidationsTotal *prometheus.CounterVec
	ExecutionsTotal  *prometheus.CounterVec
	CommitDuration   *prometheus.HistogramVec
	CommitReplays    prometheus.Counter

	// Engine metrics
	EngineRequestsTotal   *prometheus.CounterVec
	EngineRequestDuration *prometheus.HistogramVec

	// Draft metrics
	AutosaveWritesTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sukani_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sukani_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sukani_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Sessions
		SessionsCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_sessions_created_total",
			Help: "Total number of planning sessions created.",
		}, []string{"kind"}),
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sukani_sessions_active",
			Help: "Number of live planning sessions.",
		}, []string{"kind"}),
		SessionsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sukani_sessions_expired_total",
			Help: "Total number of planning sessions removed by the idle sweep.",
		}),
		SessionsResumedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sukani_sessions_resumed_total",
			Help: "Total number of planning sessions rehydrated from drafts.",
		}),

		// Plans
		PlanMutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_plan_mutations_total",
			Help: "Total number of plan mutations.",
		}, []string{"kind", "mutation"}),
		PlanSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sukani_plan_size",
			Help:    "Number of compiled instructions per commit call.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}, []string{"kind"}),

		// Commits
		ValidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_validations_total",
			Help: "Total number of plan validations.",
		}, []string{"kind", "outcome"}),
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_executions_total",
			Help: "Total number of plan executions.",
		}, []string{"kind", "status"}),
		CommitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sukani_commit_duration_seconds",
			Help:    "Validate/execute round trip duration in seconds.",
			Buckets: engineDurationBuckets,
		}, []string{"kind", "call"}),
		CommitReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sukani_commit_replays_total",
			Help: "Total number of executes answered from the idempotency store.",
		}),

		// Engine
		EngineRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_engine_requests_total",
			Help: "Total number of workflow engine requests.",
		}, []string{"operation", "status"}),
		EngineRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sukani_engine_request_duration_seconds",
			Help:    "Workflow engine request duration in seconds.",
			Buckets: engineDurationBuckets,
		}, []string{"operation"}),

		// Drafts
		AutosaveWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sukani_autosave_writes_total",
			Help: "Total number of draft autosave writes.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Sessions
		m.SessionsCreatedTotal,
		m.SessionsActive,
		m.SessionsExpiredTotal,
		m.SessionsResumedTotal,
		// Plans
		m.PlanMutationsTotal,
		m.PlanSize,
		// Commits
		m.ValidationsTotal,
		m.ExecutionsTotal,
		m.CommitDuration,
		m.CommitReplays,
		// Engine
		m.EngineRequestsTotal,
		m.EngineRequestDuration,
		// Drafts
		m.AutosaveWritesTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordSessionCreated records a new planning session.
func (m *Metrics) RecordSessionCreated(kind string) {
	m.SessionsCreatedTotal.WithLabelValues(kind).Inc()
	m.SessionsActive.WithLabelValues(kind).Inc()
}

// RecordSessionClosed records a session leaving memory (discard or expiry).
func (m *Metrics) RecordSessionClosed(kind string) {
	m.SessionsActive.WithLabelValues(kind).Dec()
}

// RecordSessionExpired records an idle-sweep expiry.
func (m *Metrics) RecordSessionExpired(kind string) {
	m.SessionsExpiredTotal.Inc()
	m.SessionsActive.WithLabelValues(kind).Dec()
}

// RecordSessionResumed records a session rehydrated from its draft.
func (m *Metrics) RecordSessionResumed(kind string) {
	m.SessionsResumedTotal.Inc()
	m.SessionsActive.WithLabelValues(kind).Inc()
}

// RecordPlanMutation records one plan or mapping mutation.
func (m *Metrics) RecordPlanMutation(kind, mutation string) {
	m.PlanMutationsTotal.WithLabelValues(kind, mutation).Inc()
}

// RecordValidation records a validation round trip.
func (m *Metrics) RecordValidation(kind, outcome string, duration time.Duration) {
	m.ValidationsTotal.WithLabelValues(kind, outcome).Inc()
	m.CommitDuration.WithLabelValues(kind, "validate").Observe(duration.Seconds())
}

// RecordExecution records an execute round trip.
func (m *Metrics) RecordExecution(kind, status string, duration time.Duration, instructions int) {
	m.ExecutionsTotal.WithLabelValues(kind, status).Inc()
	m.CommitDuration.WithLabelValues(kind, "execute").Observe(duration.Seconds())
	m.PlanSize.WithLabelValues(kind).Observe(float64(instructions))
}

// RecordCommitReplay records an execute answered from the idempotency store.
func (m *Metrics) RecordCommitReplay() {
	m.CommitReplays.Inc()
}

// RecordEngineRequest records a workflow engine request.
func (m *Metrics) RecordEngineRequest(operation, status string, duration time.Duration) {
	m.EngineRequestsTotal.WithLabelValues(operation, status).Inc()
	m.EngineRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAutosaveWrite records a draft autosave write.
func (m *Metrics) RecordAutosaveWrite(status string) {
	m.AutosaveWritesTotal.WithLabelValues(status).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
