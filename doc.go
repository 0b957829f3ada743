// Package hemat is a cost-governed client for the TwitterAPI.io HTTP API:
//
//   - Daily credit budget with a hard gate before every call
//   - Disk-backed response cache with per-endpoint TTLs and LRU eviction
//   - Sliding-window rate limiter that slows down as the budget drains
//   - Retries with exponential backoff + jitter, honoring upstream reset hints
//   - Circuit breaker (open / half-open / closed states)
//   - Request de-duplication (merges concurrent identical in-flight calls)
//   - Middleware chain for cross-cutting concerns (auth, logging, tracing, etc.)
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Never spend a credit that the cache, the budget, or an in-flight call
//     could have saved
//   - Small surface area: functional options configure everything
//   - Safe concurrent use of a single *Client instance
//   - Extensibility via user supplied middleware & pluggable cache / metrics
//
// Typical usage:
//
//	client := hemat.New(os.Getenv("TWITTERAPI_KEY"),
//	    hemat.WithDailyBudget(0.50),
//	    hemat.WithRateLimit(30, 2*time.Second),
//	    hemat.WithCircuitBreaker(hemat.CircuitBreakerConfig{}),
//	    hemat.WithDeduplication(),
//	)
//	tweets, err := client.SearchTweets(ctx, "golang", hemat.QueryLatest, hemat.PageOptions{MaxResults: 50})
//
// Every paginated endpoint has an eager form returning a full slice and a
// Seq form streaming pages through an iterator. Spending is observable at any
// time through BudgetStatus, UsageReport, CacheStats, and RateLimiterStats.
// The library avoids opinionated logging: provide a Logger (e.g. via
// WithSimpleLogger) + enable debug flags selectively (WithDebug /
// WithDebugConfig) for insight without noise.
package hemat
