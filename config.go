package hemat

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors the functional options in a shape loadable from a YAML
// file. LoadConfig unmarshals the file over DefaultConfig, so keys the file
// omits keep their defaults while explicit zero values stick.
type Config struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	UserAgent   string        `yaml:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"`
	Debug       bool          `yaml:"debug"`
	Metrics     bool          `yaml:"metrics"`
	Deduplicate bool          `yaml:"deduplicate"`

	Retry     RetrySettings     `yaml:"retry"`
	Budget    BudgetSettings    `yaml:"budget"`
	RateLimit RateLimitSettings `yaml:"rate_limit"`
	Cache     CacheSettings     `yaml:"cache"`
	Limits    LimitSettings     `yaml:"limits"`
	Breaker   BreakerSettings   `yaml:"circuit_breaker"`
}

// RetrySettings configures the retry loop. Strategy is "exponential"
// (default) or "decorrelated".
type RetrySettings struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Jitter         float64       `yaml:"jitter"`
	Strategy       string        `yaml:"strategy"`
}

// BudgetSettings configures the daily spending ledger.
type BudgetSettings struct {
	DailyUSD  float64            `yaml:"daily_usd"`
	ResetHour int                `yaml:"reset_hour"`
	Rates     map[string]float64 `yaml:"rates"`
	UsageLog  string             `yaml:"usage_log"`
}

// RateLimitSettings configures request pacing.
type RateLimitSettings struct {
	Disabled        bool          `yaml:"disabled"`
	MaxPerMinute    int           `yaml:"max_per_minute"`
	MinDelay        time.Duration `yaml:"min_delay"`
	DisableAdaptive bool          `yaml:"disable_adaptive"`
}

// CacheSettings configures the disk cache. TTL entries override the default
// per-endpoint freshness windows by suffix.
type CacheSettings struct {
	Disabled   bool                     `yaml:"disabled"`
	Dir        string                   `yaml:"dir"`
	MaxSizeMB  int                      `yaml:"max_size_mb"`
	TTL        map[string]time.Duration `yaml:"ttl"`
	DefaultTTL time.Duration            `yaml:"default_ttl"`
}

// LimitSettings configures the paging caps applied when a caller does not
// set its own.
type LimitSettings struct {
	MaxPages   int `yaml:"max_pages"`
	MaxResults int `yaml:"max_results"`
}

// BreakerSettings configures the optional circuit breaker.
type BreakerSettings struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
	SuccessThreshold int           `yaml:"success_threshold"`
}

// DefaultConfig returns a Config populated with the client defaults.
func DefaultConfig() Config {
	limits := DefaultLimits()
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: defaultTimeout,
		Retry: RetrySettings{
			MaxRetries:     defaultMaxRetries,
			InitialBackoff: defaultInitialBackoff,
			MaxBackoff:     defaultMaxBackoff,
			Jitter:         defaultJitter,
		},
		Budget: BudgetSettings{
			DailyUSD: defaultDailyBudgetUSD,
		},
		RateLimit: RateLimitSettings{
			MaxPerMinute: defaultMaxPerMinute,
			MinDelay:     defaultMinDelay,
		},
		Cache: CacheSettings{
			Dir:       defaultCacheDir,
			MaxSizeMB: defaultCacheSizeMB,
		},
		Limits: LimitSettings{
			MaxPages:   limits.MaxPages,
			MaxResults: limits.MaxResults,
		},
		Breaker: BreakerSettings{
			FailureThreshold: 5,
			RecoveryTimeout:  60 * time.Second,
			SuccessThreshold: 2,
		},
	}
}

// LoadConfig reads and parses a YAML config file. Environment variables in
// the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("hemat: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("hemat: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("hemat: config: base_url is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("hemat: config: timeout must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("hemat: config: retry.max_retries must be non-negative")
	}
	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("hemat: config: retry.initial_backoff must be positive")
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("hemat: config: retry.max_backoff must be at least retry.initial_backoff")
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("hemat: config: retry.jitter must be between 0 and 1")
	}
	switch c.Retry.Strategy {
	case "", "exponential", "decorrelated":
	default:
		return fmt.Errorf("hemat: config: retry.strategy must be exponential or decorrelated")
	}
	if c.Budget.DailyUSD < 0 {
		return fmt.Errorf("hemat: config: budget.daily_usd must be non-negative")
	}
	if c.Budget.ResetHour < 0 || c.Budget.ResetHour > 23 {
		return fmt.Errorf("hemat: config: budget.reset_hour must be between 0 and 23")
	}
	for resourceType, rate := range c.Budget.Rates {
		if rate < 0 {
			return fmt.Errorf("hemat: config: budget.rates[%s] must be non-negative", resourceType)
		}
	}
	if !c.RateLimit.Disabled {
		if c.RateLimit.MaxPerMinute <= 0 {
			return fmt.Errorf("hemat: config: rate_limit.max_per_minute must be positive")
		}
		if c.RateLimit.MinDelay < 0 {
			return fmt.Errorf("hemat: config: rate_limit.min_delay must be non-negative")
		}
	}
	if !c.Cache.Disabled {
		if c.Cache.MaxSizeMB <= 0 {
			return fmt.Errorf("hemat: config: cache.max_size_mb must be positive")
		}
		for suffix, ttl := range c.Cache.TTL {
			if ttl <= 0 {
				return fmt.Errorf("hemat: config: cache.ttl[%s] must be positive", suffix)
			}
		}
	}
	if c.Limits.MaxPages < 0 {
		return fmt.Errorf("hemat: config: limits.max_pages must be non-negative")
	}
	if c.Limits.MaxResults < 0 {
		return fmt.Errorf("hemat: config: limits.max_results must be non-negative")
	}
	if c.Breaker.Enabled {
		if c.Breaker.FailureThreshold <= 0 {
			return fmt.Errorf("hemat: config: circuit_breaker.failure_threshold must be positive")
		}
		if c.Breaker.RecoveryTimeout <= 0 {
			return fmt.Errorf("hemat: config: circuit_breaker.recovery_timeout must be positive")
		}
		if c.Breaker.SuccessThreshold <= 0 {
			return fmt.Errorf("hemat: config: circuit_breaker.success_threshold must be positive")
		}
	}
	return nil
}

// Options converts the config into the equivalent functional options. The
// API key is not part of the result; pass it to New, or use NewFromConfig.
func (c Config) Options() []Option {
	opts := []Option{
		WithBaseURL(c.BaseURL),
		WithTimeout(c.Timeout),
		WithMaxRetries(c.Retry.MaxRetries),
		WithInitialBackoff(c.Retry.InitialBackoff),
		WithMaxBackoff(c.Retry.MaxBackoff),
		WithJitter(c.Retry.Jitter),
		WithDailyBudget(c.Budget.DailyUSD),
		WithBudgetResetHour(c.Budget.ResetHour),
		WithDefaultLimits(Limits{MaxPages: c.Limits.MaxPages, MaxResults: c.Limits.MaxResults}),
	}
	if c.Retry.Strategy == "decorrelated" {
		opts = append(opts, WithBackoffStrategy(DecorrelatedJitter))
	}
	if c.UserAgent != "" {
		opts = append(opts, WithUserAgent(c.UserAgent))
	}
	if len(c.Budget.Rates) > 0 {
		opts = append(opts, WithCreditRates(CreditRates(c.Budget.Rates)))
	}
	if c.Budget.UsageLog != "" {
		opts = append(opts, WithUsageLog(c.Budget.UsageLog))
	}
	if c.RateLimit.Disabled {
		opts = append(opts, WithoutRateLimiter())
	} else {
		opts = append(opts, WithRateLimit(c.RateLimit.MaxPerMinute, c.RateLimit.MinDelay))
		if c.RateLimit.DisableAdaptive {
			opts = append(opts, WithoutAdaptivePacing())
		}
	}
	if c.Cache.Disabled {
		opts = append(opts, WithoutCache())
	} else {
		opts = append(opts, WithCacheDir(c.Cache.Dir), WithCacheSize(c.Cache.MaxSizeMB))
		if len(c.Cache.TTL) > 0 || c.Cache.DefaultTTL > 0 {
			opts = append(opts, WithCacheTTL(c.ttlTable()))
		}
	}
	if c.Breaker.Enabled {
		opts = append(opts, WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: c.Breaker.FailureThreshold,
			RecoveryTimeout:  c.Breaker.RecoveryTimeout,
			SuccessThreshold: c.Breaker.SuccessThreshold,
		}))
	}
	if c.Deduplicate {
		opts = append(opts, WithDeduplication())
	}
	if c.Metrics {
		opts = append(opts, WithMetrics())
	}
	if c.Debug {
		opts = append(opts, WithSimpleLogger())
	}
	return opts
}

// ttlTable merges the configured TTL overrides into the default table.
func (c Config) ttlTable() TTLTable {
	table := DefaultTTLTable()
	for suffix, ttl := range c.Cache.TTL {
		table.Rules[suffix] = ttl
	}
	if c.Cache.DefaultTTL > 0 {
		table.Default = c.Cache.DefaultTTL
	}
	return table
}

// NewFromConfig builds a client from cfg. Extra options are applied after
// the config and override it.
func NewFromConfig(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("hemat: config: api_key is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := New(cfg.APIKey, append(cfg.Options(), opts...)...)
	if err := client.ValidationError(); err != nil {
		return nil, err
	}
	return client, nil
}
