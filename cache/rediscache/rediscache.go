// Package rediscache provides a Redis-backed hemat.ResponseCache for
// deployments that share one response cache between processes.
//
// Entries use the same key derivation, per-endpoint freshness windows, and
// sufficiency rule as the disk cache. Expiry and capacity are delegated to
// Redis key TTLs, so there is no eviction pass.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ambiyansyah-risyal/hemat"
)

const (
	defaultKeyPrefix = "hemat:cache:"
	defaultOpTimeout = 2 * time.Second
	scanBatch        = 100
)

// Cache is a Redis-backed response cache.
type Cache struct {
	client      goredis.Cmdable
	keyPrefix   string
	ttl         hemat.TTLTable
	collections hemat.CollectionRules
	opTimeout   time.Duration

	hits   int64
	misses int64
}

var _ hemat.ResponseCache = (*Cache)(nil)

// Option configures Cache.
type Option func(*Cache)

// WithKeyPrefix sets the Redis key prefix (default "hemat:cache:").
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.keyPrefix = prefix }
}

// WithTTLTable overrides the per-endpoint freshness windows.
func WithTTLTable(table hemat.TTLTable) Option {
	return func(c *Cache) { c.ttl = table }
}

// WithCollectionRules overrides the counted-collection rules.
func WithCollectionRules(rules hemat.CollectionRules) Option {
	return func(c *Cache) { c.collections = rules }
}

// WithOpTimeout bounds each Redis operation (default 2s). Zero disables the
// bound.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

// New creates a Redis-backed response cache, for use with hemat.WithCache.
// The client must be a connected *goredis.Client or *goredis.ClusterClient.
func New(client goredis.Cmdable, opts ...Option) *Cache {
	c := &Cache{
		client:      client,
		keyPrefix:   defaultKeyPrefix,
		ttl:         hemat.DefaultTTLTable(),
		collections: hemat.DefaultCollectionRules(),
		opTimeout:   defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// key places the endpoint in the key so Clear can match by pattern; the
// hash carries the full call identity including maxResults.
func (c *Cache) key(endpoint string, params hemat.Params, maxResults int) string {
	return c.keyPrefix + endpoint + ":" + hemat.CacheKey(endpoint, params, maxResults)
}

func (c *Cache) opContext() (context.Context, context.CancelFunc) {
	if c.opTimeout > 0 {
		return context.WithTimeout(context.Background(), c.opTimeout)
	}
	return context.Background(), func() {}
}

// Get implements hemat.ResponseCache. Missing, undecodable, and
// insufficient entries all count as misses; expired keys are Redis's
// concern and simply fail the lookup.
func (c *Cache) Get(endpoint string, params hemat.Params, maxResults int) (hemat.Response, bool) {
	ctx, cancel := c.opContext()
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(endpoint, params, maxResults)).Bytes()
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	var payload hemat.Response
	if err := json.Unmarshal(raw, &payload); err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	if !c.collections.Sufficient(endpoint, payload, maxResults) {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return payload, true
}

// Set implements hemat.ResponseCache. The entry expires after the
// endpoint's freshness window.
func (c *Cache) Set(endpoint string, params hemat.Params, payload hemat.Response, maxResults int) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("hemat/rediscache: encode entry for %s: %w", endpoint, err)
	}

	ctx, cancel := c.opContext()
	defer cancel()

	if err := c.client.Set(ctx, c.key(endpoint, params, maxResults), raw, c.ttl.For(endpoint)).Err(); err != nil {
		return fmt.Errorf("hemat/rediscache: store entry for %s: %w", endpoint, err)
	}
	return nil
}

// Clear implements hemat.ResponseCache. Keys are discovered with SCAN and
// removed in batches.
func (c *Cache) Clear(endpoint string) int {
	pattern := c.keyPrefix + "*"
	if endpoint != "" {
		pattern = c.keyPrefix + endpoint + ":*"
	}

	ctx, cancel := c.opContext()
	defer cancel()

	removed := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed
		}
		if len(keys) > 0 {
			if n, err := c.client.Del(ctx, keys...).Result(); err == nil {
				removed += int(n)
			}
		}
		cursor = next
		if cursor == 0 {
			return removed
		}
	}
}

// Stats implements hemat.ResponseCache. Files counts the keys currently
// under the prefix; byte sizes stay zero because capacity belongs to Redis.
func (c *Cache) Stats() hemat.CacheStats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	ctx, cancel := c.opContext()
	defer cancel()

	files := 0
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.keyPrefix+"*", scanBatch).Result()
		if err != nil {
			break
		}
		files += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return hemat.CacheStats{
		Hits:           hits,
		Misses:         misses,
		HitRatePercent: hitRate,
		Files:          files,
	}
}
