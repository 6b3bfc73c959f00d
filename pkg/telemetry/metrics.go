package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the SDK. All methods are safe to
// call on a nil *Metrics.
type Metrics struct {
	config MetricsConfig

	// Backend client metrics
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokenRefresh    *prometheus.CounterVec

	// Run lifecycle metrics
	runTransitions *prometheus.CounterVec

	// Runtime metrics
	runtimeCalls  *prometheus.CounterVec
	runtimeErrors *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Total number of backend requests by method and status",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend requests in seconds",
			Buckets:   buckets,
		},
		[]string{"method"},
	)

	m.tokenRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "token_refresh_total",
			Help:      "Total number of OAuth2 token refresh attempts by result",
		},
		[]string{"result"},
	)

	m.runTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_transitions_total",
			Help:      "Total number of run state transitions by run kind and target state",
		},
		[]string{"kind", "state"},
	)

	m.runtimeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_calls_total",
			Help:      "Total number of runtime build and run calls",
		},
		[]string{"runtime", "operation"},
	)

	m.runtimeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runtime_errors_total",
			Help:      "Total number of failed runtime calls",
		},
		[]string{"runtime", "operation"},
	)

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.tokenRefresh,
		m.runTransitions,
		m.runtimeCalls,
		m.runtimeErrors,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordRequest records a completed backend request. A status of 0 means the
// request never got a response.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if !m.enabled() {
		return
	}
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordTokenRefresh records a token refresh attempt.
func (m *Metrics) RecordTokenRefresh(success bool) {
	if !m.enabled() {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordRunTransition records a run moving into state.
func (m *Metrics) RecordRunTransition(kind, state string) {
	if !m.enabled() {
		return
	}
	m.runTransitions.WithLabelValues(kind, state).Inc()
}

// RecordRuntimeCall records a runtime Build or Run invocation.
func (m *Metrics) RecordRuntimeCall(runtime, operation string, err error) {
	if !m.enabled() {
		return
	}
	m.runtimeCalls.WithLabelValues(runtime, operation).Inc()
	if err != nil {
		m.runtimeErrors.WithLabelValues(runtime, operation).Inc()
	}
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
