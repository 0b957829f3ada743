package hemat

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request lifecycle and
// the cost governance layers. It is safe for concurrent use and every Record
// method is a no-op on a nil collector.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimiterWindow *prometheus.GaugeVec
	rateLimitWait     *prometheus.HistogramVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheSize   *prometheus.GaugeVec

	deduplicationHits *prometheus.CounterVec

	creditsSpent     *prometheus.CounterVec
	budgetSpent      prometheus.Gauge
	budgetRemaining  prometheus.Gauge
	budgetRejections *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_requests_total",
				Help: "Total number of API requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hemat_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hemat_requests_in_flight",
				Help: "Number of API requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hemat_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimiterWindow: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hemat_rate_limiter_window",
				Help: "Number of requests in the current rate limiter window",
			},
			[]string{"name"},
		),
		rateLimitWait: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hemat_rate_limit_wait_seconds",
				Help:    "Time spent waiting on the rate limiter before sending",
				Buckets: []float64{.005, .05, .25, .5, 1, 2.5, 5, 15, 30, 60},
			},
			[]string{"endpoint"},
		),
		cacheHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"method", "endpoint"},
		),
		cacheMisses: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"method", "endpoint"},
		),
		cacheSize: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hemat_cache_size_bytes",
				Help: "Current cache footprint in bytes",
			},
			[]string{"name"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_deduplication_hits_total",
				Help: "Total number of requests served by an identical in-flight call",
			},
			[]string{"method", "endpoint"},
		),
		creditsSpent: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_credits_spent_total",
				Help: "Total API credits charged to the budget",
			},
			[]string{"endpoint", "resource_type"},
		),
		budgetSpent: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "hemat_budget_spent_credits",
				Help: "Credits spent so far in the current budget day",
			},
		),
		budgetRemaining: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "hemat_budget_remaining_credits",
				Help: "Credits remaining in the current budget day",
			},
		),
		budgetRejections: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_budget_rejections_total",
				Help: "Total number of calls refused because the budget could not cover them",
			},
			[]string{"endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "hemat_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type", "method", "endpoint"},
		),
		registry: registry,
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments the in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements the in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments the retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}

	attemptStr := strconv.Itoa(attempt)
	mc.retriesTotal.WithLabelValues(method, endpoint, attemptStr).Inc()
}

// RecordCircuitBreakerState sets the gauge to the breaker state.
func (mc *MetricsCollector) RecordCircuitBreakerState(name string, state CircuitState) {
	if mc == nil {
		return
	}

	var stateValue float64
	switch state {
	case StateClosed:
		stateValue = 0
	case StateOpen:
		stateValue = 1
	case StateHalfOpen:
		stateValue = 2
	}

	mc.circuitBreakerState.WithLabelValues(name).Set(stateValue)
}

// RecordRateLimiterWindow sets the sliding window occupancy gauge.
func (mc *MetricsCollector) RecordRateLimiterWindow(name string, size int) {
	if mc == nil {
		return
	}

	mc.rateLimiterWindow.WithLabelValues(name).Set(float64(size))
}

// RecordRateLimitWait observes time spent waiting before a send.
func (mc *MetricsCollector) RecordRateLimitWait(endpoint string, wait time.Duration) {
	if mc == nil {
		return
	}

	mc.rateLimitWait.WithLabelValues(endpoint).Observe(wait.Seconds())
}

// RecordCacheHit increments the cache hit counter.
func (mc *MetricsCollector) RecordCacheHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (mc *MetricsCollector) RecordCacheMiss(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.cacheMisses.WithLabelValues(method, endpoint).Inc()
}

// RecordCacheSize sets the cache footprint gauge.
func (mc *MetricsCollector) RecordCacheSize(name string, bytes int64) {
	if mc == nil {
		return
	}

	mc.cacheSize.WithLabelValues(name).Set(float64(bytes))
}

// RecordDeduplicationHit increments the shared in-flight result counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.deduplicationHits.WithLabelValues(method, endpoint).Inc()
}

// RecordCreditsSpent adds a charge to the spent credits counter.
func (mc *MetricsCollector) RecordCreditsSpent(endpoint, resourceType string, credits float64) {
	if mc == nil {
		return
	}

	mc.creditsSpent.WithLabelValues(endpoint, resourceType).Add(credits)
}

// RecordBudget updates the spent and remaining budget gauges.
func (mc *MetricsCollector) RecordBudget(status BudgetStatus) {
	if mc == nil {
		return
	}

	mc.budgetSpent.Set(status.SpentTodayCredits)
	mc.budgetRemaining.Set(status.RemainingCredits)
}

// RecordBudgetRejection increments the refused call counter.
func (mc *MetricsCollector) RecordBudgetRejection(endpoint string) {
	if mc == nil {
		return
	}

	mc.budgetRejections.WithLabelValues(endpoint).Inc()
}

// RecordError increments the error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// Registry exposes the registerer metrics were registered on.
func (mc *MetricsCollector) Registry() prometheus.Registerer {
	return mc.registry
}
