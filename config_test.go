package hemat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hemat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("HEMAT_TEST_KEY", "key-from-env")

	path := writeConfigFile(t, `
api_key: ${HEMAT_TEST_KEY}
timeout: 5s
debug: true
retry:
  max_retries: 1
  initial_backoff: 250ms
  strategy: decorrelated
budget:
  daily_usd: 2.5
  reset_hour: 6
rate_limit:
  max_per_minute: 30
  min_delay: 100ms
cache:
  disabled: true
limits:
  max_pages: 3
  max_results: 40
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.APIKey != "key-from-env" {
		t.Errorf("Expected api_key expanded from the environment, got %q", cfg.APIKey)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Timeout)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
	if cfg.Retry.MaxRetries != 1 {
		t.Errorf("Expected max_retries 1, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialBackoff != 250*time.Millisecond {
		t.Errorf("Expected initial_backoff 250ms, got %v", cfg.Retry.InitialBackoff)
	}
	if cfg.Retry.Strategy != "decorrelated" {
		t.Errorf("Expected strategy decorrelated, got %q", cfg.Retry.Strategy)
	}
	if cfg.Budget.DailyUSD != 2.5 {
		t.Errorf("Expected daily_usd 2.5, got %v", cfg.Budget.DailyUSD)
	}
	if cfg.Budget.ResetHour != 6 {
		t.Errorf("Expected reset_hour 6, got %d", cfg.Budget.ResetHour)
	}
	if cfg.RateLimit.MaxPerMinute != 30 {
		t.Errorf("Expected max_per_minute 30, got %d", cfg.RateLimit.MaxPerMinute)
	}
	if !cfg.Cache.Disabled {
		t.Error("Expected the cache to be disabled")
	}
	if cfg.Limits.MaxPages != 3 || cfg.Limits.MaxResults != 40 {
		t.Errorf("Expected limits 3/40, got %d/%d", cfg.Limits.MaxPages, cfg.Limits.MaxResults)
	}

	// Keys the file omits keep their defaults.
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %q", cfg.BaseURL)
	}
	if cfg.Retry.MaxBackoff != defaultMaxBackoff {
		t.Errorf("Expected default max_backoff, got %v", cfg.Retry.MaxBackoff)
	}
	if cfg.Cache.Dir != defaultCacheDir {
		t.Errorf("Expected default cache dir, got %q", cfg.Cache.Dir)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Expected an error for a missing file")
	}
	if !strings.Contains(err.Error(), "read config") {
		t.Errorf("Expected a read error, got %v", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "timeout: [not a duration\n")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("Expected an error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Errorf("Expected a parse error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }, "base_url is required"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be positive"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "max_retries must be non-negative"},
		{"backoff inversion", func(c *Config) { c.Retry.MaxBackoff = c.Retry.InitialBackoff / 2 }, "max_backoff must be at least"},
		{"jitter out of range", func(c *Config) { c.Retry.Jitter = 1.5 }, "jitter must be between 0 and 1"},
		{"unknown strategy", func(c *Config) { c.Retry.Strategy = "fibonacci" }, "retry.strategy must be exponential or decorrelated"},
		{"negative budget", func(c *Config) { c.Budget.DailyUSD = -1 }, "daily_usd must be non-negative"},
		{"reset hour out of range", func(c *Config) { c.Budget.ResetHour = 24 }, "reset_hour must be between 0 and 23"},
		{"negative rate", func(c *Config) { c.Budget.Rates = map[string]float64{"tweet": -1} }, "budget.rates[tweet]"},
		{"zero per minute", func(c *Config) { c.RateLimit.MaxPerMinute = 0 }, "max_per_minute must be positive"},
		{"zero cache size", func(c *Config) { c.Cache.MaxSizeMB = 0 }, "max_size_mb must be positive"},
		{"zero ttl", func(c *Config) { c.Cache.TTL = map[string]time.Duration{"user/info": 0} }, "cache.ttl[user/info]"},
		{"negative max pages", func(c *Config) { c.Limits.MaxPages = -1 }, "max_pages must be non-negative"},
		{"breaker without threshold", func(c *Config) {
			c.Breaker.Enabled = true
			c.Breaker.FailureThreshold = 0
		}, "failure_threshold must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestConfigValidateDisabledSectionsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Disabled = true
	cfg.RateLimit.MaxPerMinute = 0
	cfg.Cache.Disabled = true
	cfg.Cache.MaxSizeMB = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled sections to skip validation, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	cfg.Budget.DailyUSD = 2.0
	cfg.RateLimit.MaxPerMinute = 10
	cfg.Cache.Disabled = true
	cfg.Limits = LimitSettings{MaxPages: 4, MaxResults: 50}

	client, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if status := client.BudgetStatus(); status.DailyBudgetUSD != 2.0 {
		t.Errorf("Expected daily budget 2.0, got %v", status.DailyBudgetUSD)
	}
	if stats := client.RateLimiterStats(); stats.MaxPerMinute != 10 {
		t.Errorf("Expected max per minute 10, got %d", stats.MaxPerMinute)
	}
	if limits := client.PageLimits(); limits.MaxPages != 4 || limits.MaxResults != 50 {
		t.Errorf("Expected limits 4/50, got %d/%d", limits.MaxPages, limits.MaxResults)
	}
	if stats := client.CacheStats(); stats.MaxSizeMB != 0 {
		t.Errorf("Expected no cache, got stats %v", stats)
	}
}

func TestNewFromConfigBackoffStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	cfg.Cache.Disabled = true
	cfg.Retry.Strategy = "decorrelated"

	client, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if client.backoffStrategy != DecorrelatedJitter {
		t.Errorf("Expected the decorrelated strategy, got %v", client.backoffStrategy)
	}
}

func TestNewFromConfigRequiresAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Disabled = true
	_, err := NewFromConfig(cfg)
	if err == nil {
		t.Fatal("Expected an error for a missing api_key")
	}
	if !strings.Contains(err.Error(), "api_key is required") {
		t.Errorf("Expected an api_key error, got %v", err)
	}
}

func TestConfigOptionsExtrasOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKey = testAPIKey
	cfg.Cache.Disabled = true
	cfg.RateLimit.MaxPerMinute = 10

	client, err := NewFromConfig(cfg, WithRateLimit(20, time.Second))
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if stats := client.RateLimiterStats(); stats.MaxPerMinute != 20 {
		t.Errorf("Expected extra options to override the config, got %d", stats.MaxPerMinute)
	}
}

func TestConfigTTLOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.TTL = map[string]time.Duration{"twitter/user/info": 5 * time.Minute}
	cfg.Cache.DefaultTTL = time.Minute

	table := cfg.ttlTable()
	if got := table.For("twitter/user/info"); got != 5*time.Minute {
		t.Errorf("Expected the override to win, got %v", got)
	}
	if got := table.For("twitter/user/followers"); got != 2*time.Hour {
		t.Errorf("Expected untouched rules to keep their defaults, got %v", got)
	}
	if got := table.For("some/other/endpoint"); got != time.Minute {
		t.Errorf("Expected the default TTL override, got %v", got)
	}
}
