package hemat

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ambiyansyah-risyal/hemat/internal/backoff"
)

// Option configures a Client at construction.
type Option func(*Client)

// WithBaseURL points the client at a different API root, e.g. a staging
// environment or a local stub.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxRetries sets the maximum number of retry attempts per call.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithInitialBackoff sets the backoff before the first retry. Subsequent
// retries double it.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithMaxBackoff caps the computed backoff delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0).
func WithJitter(f float64) Option {
	return func(c *Client) {
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		c.jitter = f
	}
}

// BackoffStrategy selects how retry delays are spread between attempts.
type BackoffStrategy int

const (
	// ExponentialJitter doubles the delay each retry and adds a random
	// fraction on top. The default.
	ExponentialJitter BackoffStrategy = iota
	// DecorrelatedJitter draws each delay from a widening range, per the
	// AWS architecture blog. It spreads concurrent retriers more evenly.
	DecorrelatedJitter
)

// WithBackoffStrategy selects the delay strategy used between retries.
func WithBackoffStrategy(strategy BackoffStrategy) Option {
	return func(c *Client) {
		c.backoffStrategy = strategy
		switch strategy {
		case DecorrelatedJitter:
			c.backoff = backoff.NewDecorrelatedJitterCalculator()
		default:
			c.backoff = backoff.NewExponentialCalculator()
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		if c.timeout != 0 {
			c.httpClient.Timeout = c.timeout
		}
	}
}

// WithMiddleware adds middleware around the transport.
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithDailyBudget sets the daily spending cap in USD.
func WithDailyBudget(usd float64) Option {
	return func(c *Client) {
		c.budgetCfg.DailyBudgetUSD = usd
	}
}

// WithBudgetResetHour sets the local hour (0-23) at which daily spend resets.
func WithBudgetResetHour(hour int) Option {
	return func(c *Client) {
		c.budgetCfg.ResetHour = hour
	}
}

// WithCreditRates overrides the per-item credit prices used for estimates
// and charges.
func WithCreditRates(rates CreditRates) Option {
	return func(c *Client) {
		c.budgetCfg.Rates = rates
	}
}

// WithUsageLog appends one JSON line per billed call to the file at path.
func WithUsageLog(path string) Option {
	return func(c *Client) {
		c.budgetCfg.UsageLogPath = path
	}
}

// WithBudgetTracker replaces the budget ledger entirely, for sharing one
// ledger between clients.
func WithBudgetTracker(b *BudgetTracker) Option {
	return func(c *Client) {
		c.budget = b
	}
}

// WithRateLimit sets the sliding window cap and the base spacing between
// consecutive calls.
func WithRateLimit(maxPerMinute int, minDelay time.Duration) Option {
	return func(c *Client) {
		c.limiterCfg.MaxPerMinute = maxPerMinute
		c.limiterCfg.MinDelay = minDelay
	}
}

// WithoutAdaptivePacing turns off budget-aware delay scaling; the limiter
// keeps the flat minimum delay regardless of spend.
func WithoutAdaptivePacing() Option {
	return func(c *Client) {
		c.limiterCfg.DisableAdaptive = true
	}
}

// WithRateLimiter replaces the rate limiter entirely.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) {
		c.rateLimiter = rl
	}
}

// WithoutRateLimiter disables request pacing.
func WithoutRateLimiter() Option {
	return func(c *Client) {
		c.limiterDisabled = true
		c.rateLimiter = nil
	}
}

// WithCacheDir sets the disk cache directory.
func WithCacheDir(dir string) Option {
	return func(c *Client) {
		c.cacheCfg.Dir = dir
	}
}

// WithCacheSize caps the disk cache size in megabytes.
func WithCacheSize(mb int) Option {
	return func(c *Client) {
		c.cacheCfg.MaxSizeMB = mb
	}
}

// WithCacheTTL overrides the per-endpoint freshness windows.
func WithCacheTTL(table TTLTable) Option {
	return func(c *Client) {
		c.cacheCfg.TTL = table
	}
}

// WithCache replaces the response cache entirely, e.g. with the Redis-backed
// implementation from the cache/rediscache subpackage.
func WithCache(cache ResponseCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithoutCache disables response caching.
func WithoutCache() Option {
	return func(c *Client) {
		c.cacheDisabled = true
		c.cache = nil
	}
}

// WithCacheCondition sets a custom cache eligibility function.
func WithCacheCondition(fn CacheCondition) Option {
	return func(c *Client) {
		c.cacheCondition = fn
	}
}

// WithCircuitBreaker enables the circuit breaker with the given
// configuration. The breaker shares the client clock unless the
// configuration carries its own.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		c.breakerCfg = config
		c.breakerEnabled = true
		c.circuitBreaker = nil
	}
}

// WithoutCircuitBreaker disables a previously enabled circuit breaker.
func WithoutCircuitBreaker() Option {
	return func(c *Client) {
		c.breakerEnabled = false
		c.circuitBreaker = nil
	}
}

// WithDeduplication coalesces identical concurrent calls into one upstream
// request.
func WithDeduplication() Option {
	return func(c *Client) {
		c.deduplication = NewDeduplicationTracker()
	}
}

// WithDeduplicationKeyFunc sets a custom deduplication key function.
func WithDeduplicationKeyFunc(fn DeduplicationKeyFunc) Option {
	return func(c *Client) {
		c.dedupKeyFunc = fn
	}
}

// WithDeduplicationCondition sets a custom deduplication condition function.
func WithDeduplicationCondition(fn DeduplicationCondition) Option {
	return func(c *Client) {
		c.dedupCondition = fn
	}
}

// WithCostEstimator replaces the endpoint cost prediction.
func WithCostEstimator(fn CostEstimator) Option {
	return func(c *Client) {
		c.estimator = fn
	}
}

// WithNormalizer registers or replaces the payload normalizer for an
// endpoint suffix.
func WithNormalizer(suffix string, fn Normalizer) Option {
	return func(c *Client) {
		c.normalizers.Register(suffix, fn)
	}
}

// WithDefaultLimits sets the paging limits applied when a caller passes a
// zero Limits value.
func WithDefaultLimits(limits Limits) Option {
	return func(c *Client) {
		c.limits = limits
	}
}

// WithMetrics enables Prometheus metrics collection on the default
// registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithDebug enables debug logging with the default configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a plain console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithClock injects a clock, letting tests drive every time dependent
// component from one fake.
func WithClock(clock Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	problems = append(problems, c.validateCredentials()...)
	problems = append(problems, c.validateRetryConfig()...)
	problems = append(problems, c.validateBudgetConfig()...)
	problems = append(problems, c.validateRateLimiterConfig()...)
	problems = append(problems, c.validateCacheConfig()...)
	problems = append(problems, c.validateCircuitBreakerConfig()...)
	problems = append(problems, c.validateDebugConfig()...)
	problems = append(problems, c.validateDeduplicationConfig()...)
	problems = append(problems, c.validateMiddlewareConfig()...)
	problems = append(problems, c.validateHTTPClientConfig()...)
	problems = append(problems, c.validateExtremeValues()...)

	if len(problems) > 0 {
		return &APIError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; ")),
		}
	}

	return nil
}

func (c *Client) validateCredentials() []string {
	var problems []string

	if c.apiKey == "" {
		problems = append(problems, "API key cannot be empty")
	}
	if c.baseURL == "" {
		problems = append(problems, "base URL cannot be empty")
	}

	return problems
}

func (c *Client) validateRetryConfig() []string {
	var problems []string

	if c.maxRetries < 0 {
		problems = append(problems, "maxRetries must be non-negative")
	}
	if c.initialBackoff <= 0 {
		problems = append(problems, "initialBackoff must be positive")
	}
	if c.maxBackoff < c.initialBackoff {
		problems = append(problems, "maxBackoff must be greater than or equal to initialBackoff")
	}
	if c.jitter < 0 || c.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if c.backoffStrategy != ExponentialJitter && c.backoffStrategy != DecorrelatedJitter {
		problems = append(problems, "backoff strategy must be ExponentialJitter or DecorrelatedJitter")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}

	return problems
}

func (c *Client) validateBudgetConfig() []string {
	var problems []string

	if c.budget == nil {
		problems = append(problems, "budget tracker cannot be nil")
	}
	if c.budgetCfg.DailyBudgetUSD < 0 {
		problems = append(problems, "daily budget must be non-negative")
	}
	if c.budgetCfg.ResetHour < 0 || c.budgetCfg.ResetHour > 23 {
		problems = append(problems, "budget reset hour must be between 0 and 23")
	}
	for resourceType, rate := range c.budgetCfg.Rates {
		if rate < 0 {
			problems = append(problems, fmt.Sprintf("credit rate for %q must be non-negative", resourceType))
		}
	}

	return problems
}

func (c *Client) validateRateLimiterConfig() []string {
	var problems []string

	if c.limiterCfg.MaxPerMinute < 0 {
		problems = append(problems, "rate limit maxPerMinute must be non-negative")
	}
	if c.limiterCfg.MinDelay < 0 {
		problems = append(problems, "rate limit minDelay must be non-negative")
	}

	return problems
}

func (c *Client) validateCacheConfig() []string {
	var problems []string

	if c.cacheCfg.MaxSizeMB < 0 {
		problems = append(problems, "cache size must be non-negative")
	}

	return problems
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var problems []string

	if c.circuitBreaker != nil {
		if c.circuitBreaker.config.FailureThreshold <= 0 {
			problems = append(problems, "circuitBreaker FailureThreshold must be positive")
		}
		if c.circuitBreaker.config.RecoveryTimeout <= 0 {
			problems = append(problems, "circuitBreaker RecoveryTimeout must be positive")
		}
		if c.circuitBreaker.config.SuccessThreshold <= 0 {
			problems = append(problems, "circuitBreaker SuccessThreshold must be positive")
		}
	}

	return problems
}

func (c *Client) validateDebugConfig() []string {
	var problems []string

	if c.debug != nil && c.debug.Enabled {
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	return problems
}

func (c *Client) validateDeduplicationConfig() []string {
	var problems []string

	if c.deduplication != nil {
		if c.dedupKeyFunc == nil {
			problems = append(problems, "deduplication key function must be set when deduplication is enabled")
		}
		if c.dedupCondition == nil {
			problems = append(problems, "deduplication condition must be set when deduplication is enabled")
		}
	}

	return problems
}

func (c *Client) validateMiddlewareConfig() []string {
	var problems []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			problems = append(problems, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return problems
}

func (c *Client) validateHTTPClientConfig() []string {
	var problems []string

	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}

	return problems
}

func (c *Client) validateExtremeValues() []string {
	var problems []string

	if c.maxRetries > 100 {
		problems = append(problems, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.initialBackoff > 10*time.Minute {
		problems = append(problems, "initialBackoff > 10m may cause very long delays")
	}
	if c.maxBackoff > time.Hour {
		problems = append(problems, "maxBackoff > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		problems = append(problems, "timeout > 10m may cause requests to hang for too long")
	}
	if c.limiterCfg.MaxPerMinute > 100000 {
		problems = append(problems, "rate limit maxPerMinute > 100000 defeats the sliding window")
	}
	if c.cacheCfg.MaxSizeMB > 100000 {
		problems = append(problems, "cache size > 100GB is almost certainly a unit mistake")
	}

	return problems
}
