package hemat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ambiyansyah-risyal/hemat/internal/backoff"
)

const (
	// DefaultBaseURL is the upstream API root.
	DefaultBaseURL = "https://api.twitterapi.io"

	defaultTimeout        = 30 * time.Second
	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 30 * time.Second
	defaultJitter         = 0.1
)

// Client is a cost-governed TwitterAPI.io client. Every outbound call passes
// a single pipeline: budget check, cache lookup, deduplication, rate limit
// pacing, transport with retries, usage recording, cache store. It is safe
// for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	timeout    time.Duration

	maxRetries      int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	jitter          float64
	backoffStrategy BackoffStrategy
	backoff         *backoff.Calculator

	budget    *BudgetTracker
	budgetCfg BudgetConfig

	rateLimiter     *RateLimiter
	limiterCfg      RateLimiterConfig
	limiterDisabled bool

	cache          ResponseCache
	cacheCfg       DiskCacheConfig
	cacheDisabled  bool
	cacheCondition CacheCondition

	circuitBreaker *CircuitBreaker
	breakerCfg     CircuitBreakerConfig
	breakerEnabled bool

	deduplication  *DeduplicationTracker
	dedupKeyFunc   DeduplicationKeyFunc
	dedupCondition DeduplicationCondition

	estimator   CostEstimator
	normalizers *NormalizerTable
	middleware  []Middleware
	metrics     *MetricsCollector
	debug       *DebugConfig
	logger      Logger
	clock       Clock
	limits      Limits

	validationError error
}

// New constructs a Client for the given API key using the provided
// functional options. Budget tracking, disk caching, and rate limiting are
// on by default; the circuit breaker and request deduplication are opt in.
// A best effort validation is performed; call IsValid / ValidationError for
// errors.
func New(apiKey string, options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
		userAgent: "hemat/" + Version,
		timeout:   defaultTimeout,

		maxRetries:     defaultMaxRetries,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		jitter:         defaultJitter,
		backoff:        backoff.NewExponentialCalculator(),

		cacheCondition: DefaultCacheCondition,
		dedupKeyFunc:   DefaultDeduplicationKeyFunc,
		dedupCondition: DefaultDeduplicationCondition,
		estimator:      DefaultCostEstimator,
		normalizers:    DefaultNormalizerTable(),
		middleware:     []Middleware{},
		debug:          DefaultDebugConfig(),
		limits:         DefaultLimits(),
	}

	for _, option := range options {
		option(client)
	}

	// Components not replaced by an option are built now so they share the
	// final clock and logger.
	if client.clock == nil {
		client.clock = NewClock()
	}
	if client.budget == nil {
		cfg := client.budgetCfg
		if cfg.Clock == nil {
			cfg.Clock = client.clock
		}
		if cfg.Logger == nil {
			cfg.Logger = client.componentLogger()
		}
		client.budget = NewBudgetTracker(cfg)
	}
	if client.rateLimiter == nil && !client.limiterDisabled {
		cfg := client.limiterCfg
		if cfg.Budget == nil {
			cfg.Budget = client.budget
		}
		if cfg.Clock == nil {
			cfg.Clock = client.clock
		}
		if cfg.Logger == nil {
			cfg.Logger = client.componentLogger()
		}
		client.rateLimiter = NewRateLimiter(cfg)
	}
	if client.circuitBreaker == nil && client.breakerEnabled {
		cfg := client.breakerCfg
		if cfg.Clock == nil {
			cfg.Clock = client.clock
		}
		client.circuitBreaker = NewCircuitBreaker(cfg)
	}
	if client.cache == nil && !client.cacheDisabled {
		cfg := client.cacheCfg
		if cfg.Clock == nil {
			cfg.Clock = client.clock
		}
		if cfg.Logger == nil {
			cfg.Logger = client.componentLogger()
		}
		cache, err := NewDiskCache(cfg)
		if err != nil {
			client.validationError = fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		} else {
			client.cache = cache
		}
	}

	if err := client.ValidateConfiguration(); err != nil && client.validationError == nil {
		client.validationError = err
	}

	return client
}

// componentLogger hands sub-components the configured logger, or a discard
// logger when debug output is off.
func (c *Client) componentLogger() Logger {
	if c.debug != nil && c.debug.Enabled && c.logger != nil {
		return c.logger
	}
	return NoopLogger{}
}

func (c *Client) requestID() string {
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		return c.debug.RequestIDGen()
	}
	return ""
}

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	maxResults int
	skipCache  bool
}

// WithMaxResults declares how many items the caller needs from this call.
// The value joins the cache identity, so a smaller cached page is never
// served for a larger ask.
func WithMaxResults(n int) RequestOption {
	return func(o *requestOptions) {
		o.maxResults = n
	}
}

// WithSkipCache bypasses the cache for this call, in both directions.
func WithSkipCache() RequestOption {
	return func(o *requestOptions) {
		o.skipCache = true
	}
}

func buildRequestOptions(opts []RequestOption) requestOptions {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

// Get performs a GET call through the pipeline.
func (c *Client) Get(ctx context.Context, endpoint string, params Params, opts ...RequestOption) (Response, error) {
	return c.Do(ctx, http.MethodGet, endpoint, params, opts...)
}

// Post performs a POST call through the pipeline. Params travel as a JSON
// body, and the cache is skipped.
func (c *Client) Post(ctx context.Context, endpoint string, params Params, opts ...RequestOption) (Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, params, opts...)
}

// Delete performs a DELETE call through the pipeline. Params travel as a
// JSON body, matching the upstream's delete endpoints.
func (c *Client) Delete(ctx context.Context, endpoint string, params Params, opts ...RequestOption) (Response, error) {
	return c.Do(ctx, http.MethodDelete, endpoint, params, opts...)
}

// Do executes one API call through the full pipeline. endpoint is the path
// under the API root, e.g. "twitter/user/info".
func (c *Client) Do(ctx context.Context, method, endpoint string, params Params, opts ...RequestOption) (Response, error) {
	if c.validationError != nil {
		return nil, c.validationError
	}

	ro := buildRequestOptions(opts)
	params = sanitizeParams(params)
	start := c.clock.Now()
	requestID := c.requestID()

	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("Starting request", "requestID", requestID, "method", method, "endpoint", endpoint)
	}
	if c.metrics != nil {
		c.metrics.RecordRequestStart(method, endpoint)
	}

	resourceType, count := c.estimator(endpoint, params)
	estimatedCost := c.budget.CalculateCost(resourceType, count)

	// Budget gate. A refused call costs nothing and is never retried.
	if !c.budget.CheckBudget(estimatedCost) {
		status := c.budget.Status()
		if c.metrics != nil {
			c.metrics.RecordBudgetRejection(endpoint)
			c.metrics.RecordBudget(status)
			c.metrics.RecordRequestEnd(method, endpoint)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogBudget && c.logger != nil {
			c.logger.Warn("Budget exhausted", "requestID", requestID, "endpoint", endpoint,
				"estimatedCredits", estimatedCost, "remainingCredits", status.RemainingCredits)
		}
		return nil, &APIError{
			Type: ErrorTypeBudgetExceeded,
			Message: fmt.Sprintf("estimated cost %.0f credits exceeds remaining daily budget (%.0f of %.0f credits left)",
				estimatedCost, status.RemainingCredits, status.DailyBudgetCredits),
			Cause:     ErrBudgetExceeded,
			RequestID: requestID,
			Method:    method,
			Endpoint:  endpoint,
			Timestamp: c.clock.Now(),
		}
	}

	// Cache lookup, read calls only. Hits return before any network or
	// budget activity.
	cacheEnabled := c.cache != nil && !ro.skipCache && c.cacheCondition(method, endpoint)
	if cacheEnabled {
		if payload, found := c.cache.Get(endpoint, params, ro.maxResults); found {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("Cache hit", "requestID", requestID, "endpoint", endpoint, "maxResults", ro.maxResults)
			}
			if c.metrics != nil {
				c.metrics.RecordCacheHit(method, endpoint)
				c.metrics.RecordRequestEnd(method, endpoint)
				c.metrics.RecordRequest(method, endpoint, http.StatusOK, c.clock.Now().Sub(start))
			}
			return payload, nil
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("Cache miss", "requestID", requestID, "endpoint", endpoint, "maxResults", ro.maxResults)
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(method, endpoint)
		}
	}

	// Deduplication: join an identical in-flight call instead of paying for
	// a second one.
	dedupEnabled := c.deduplication != nil && c.dedupCondition(method, endpoint)
	var dedupEntry *DeduplicationEntry
	var isDedupOwner bool
	var dedupKey string
	if dedupEnabled {
		dedupKey = c.dedupKeyFunc(method, endpoint, params, ro.maxResults)
		dedupEntry, isDedupOwner = c.deduplication.GetOrCreateEntry(dedupKey)
		if !isDedupOwner {
			payload, err := dedupEntry.Wait(ctx)
			if c.debug != nil && c.debug.Enabled && c.logger != nil {
				c.logger.Debug("Joined in-flight call", "requestID", requestID, "dedupKey", dedupKey)
			}
			if c.metrics != nil {
				c.metrics.RecordDeduplicationHit(method, endpoint)
				c.metrics.RecordRequestEnd(method, endpoint)
			}
			return payload, err
		}
	}

	payload, err := c.fetch(ctx, method, endpoint, params, ro, cacheEnabled, resourceType, count, estimatedCost, requestID, start)

	if dedupEnabled && isDedupOwner && dedupEntry != nil {
		c.deduplication.Complete(dedupKey, payload, err)
	}

	duration := c.clock.Now().Sub(start)
	statusCode := 0
	if err == nil {
		statusCode = http.StatusOK
	} else {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			statusCode = apiErr.StatusCode
		}
	}
	if c.metrics != nil {
		c.metrics.RecordRequestEnd(method, endpoint)
		c.metrics.RecordRequest(method, endpoint, statusCode, duration)
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		if err != nil {
			c.logger.Debug("Request failed", "requestID", requestID, "endpoint", endpoint, "duration", duration, "error", err.Error())
		} else {
			c.logger.Debug("Request finished", "requestID", requestID, "endpoint", endpoint, "duration", duration)
		}
	}

	return payload, err
}

// fetch runs the billed half of the pipeline: pacing, transport, usage
// recording, cache store.
func (c *Client) fetch(ctx context.Context, method, endpoint string, params Params, ro requestOptions, cacheEnabled bool, resourceType string, count int, estimatedCost float64, requestID string, start time.Time) (Response, error) {
	if c.rateLimiter != nil {
		wait, err := c.rateLimiter.WaitIfNeeded(ctx, endpoint, estimatedCost)
		if err != nil {
			return nil, &APIError{
				Type:      ErrorTypeConnection,
				Message:   "rate limit wait interrupted",
				Cause:     err,
				RequestID: requestID,
				Method:    method,
				Endpoint:  endpoint,
				Timestamp: c.clock.Now(),
			}
		}
		if wait > 0 && c.debug != nil && c.debug.Enabled && c.debug.LogRateLimit && c.logger != nil {
			c.logger.Debug("Rate limit pacing", "requestID", requestID, "endpoint", endpoint, "wait", wait)
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimitWait(endpoint, wait)
			c.metrics.RecordRateLimiterWindow("default", c.rateLimiter.Stats().CurrentWindow)
		}
	}

	payload, err := c.execute(ctx, method, endpoint, params, requestID, start)
	if err != nil {
		return nil, err
	}

	// The call went upstream, so it is billed. Charge the same figures the
	// estimate used.
	credits := c.budget.RecordUsage(endpoint, resourceType, count)
	if c.debug != nil && c.debug.Enabled && c.debug.LogBudget && c.logger != nil {
		c.logger.Debug("Usage recorded", "requestID", requestID, "endpoint", endpoint,
			"resourceType", resourceType, "count", count, "credits", credits)
	}
	if c.metrics != nil {
		c.metrics.RecordCreditsSpent(endpoint, resourceType, credits)
		c.metrics.RecordBudget(c.budget.Status())
	}

	if cacheEnabled {
		if cacheErr := c.cache.Set(endpoint, params, payload, ro.maxResults); cacheErr != nil {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Warn("Cache write failed", "requestID", requestID, "endpoint", endpoint, "error", cacheErr.Error())
			}
		} else {
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("Response cached", "requestID", requestID, "endpoint", endpoint, "maxResults", ro.maxResults)
			}
			if c.metrics != nil {
				c.metrics.RecordCacheSize("disk", c.cache.Stats().SizeBytes)
			}
		}
	}

	return payload, nil
}

// BudgetStatus returns a snapshot of the spending ledger.
func (c *Client) BudgetStatus() BudgetStatus {
	return c.budget.Status()
}

// CanAfford reports whether count items of resourceType fit in the remaining
// daily budget, and what they would cost in credits.
func (c *Client) CanAfford(resourceType string, count int) (bool, float64) {
	return c.budget.CanAfford(resourceType, count)
}

// UsageReport aggregates recorded usage over the trailing days.
func (c *Client) UsageReport(days int) UsageReport {
	return c.budget.Report(days)
}

// CacheStats returns cache hit and size counters. Stats are zero when
// caching is disabled.
func (c *Client) CacheStats() CacheStats {
	if c.cache == nil {
		return CacheStats{}
	}
	return c.cache.Stats()
}

// ClearCache removes cached responses for endpoint, or every entry when
// endpoint is empty, and returns the number removed.
func (c *Client) ClearCache(endpoint string) int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Clear(endpoint)
}

// RateLimiterStats returns a snapshot of the limiter's sliding window.
func (c *Client) RateLimiterStats() RateLimiterStats {
	if c.rateLimiter == nil {
		return RateLimiterStats{}
	}
	return c.rateLimiter.Stats()
}

// PageLimits returns the paging limits applied when a caller passes a zero
// Limits value.
func (c *Client) PageLimits() Limits {
	return c.limits
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
