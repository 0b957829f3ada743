package hemat

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultCacheDir    = ".hemat_cache"
	defaultCacheSizeMB = 100
	defaultCacheTTL    = 10 * time.Minute

	// evictTargetRatio is the fill level eviction shrinks the cache to once
	// the capacity is exceeded.
	evictTargetRatio = 0.8
)

// ResponseCache stores normalized payloads keyed by endpoint, parameters,
// and the requested result count. Implementations must be safe for
// concurrent use. maxResults 0 means the caller did not cap results.
type ResponseCache interface {
	// Get returns the cached payload for the call, or ok=false on a miss.
	Get(endpoint string, params Params, maxResults int) (Response, bool)
	// Set stores the payload for the call.
	Set(endpoint string, params Params, payload Response, maxResults int) error
	// Clear removes entries written for endpoint, or every entry when
	// endpoint is empty, and returns the number removed.
	Clear(endpoint string) int
	// Stats returns hit and size counters.
	Stats() CacheStats
}

// CacheCondition decides whether a call's response may be served from and
// written to the cache.
type CacheCondition func(method, endpoint string) bool

// DefaultCacheCondition caches read calls only.
func DefaultCacheCondition(method, endpoint string) bool {
	return method == http.MethodGet
}

// CacheStats reports cache effectiveness and disk footprint.
type CacheStats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	HitRatePercent float64 `json:"hit_rate_percent"`
	SizeBytes      int64   `json:"size_bytes"`
	SizeMB         float64 `json:"size_mb"`
	Files          int     `json:"files"`
	MaxSizeMB      float64 `json:"max_size_mb"`
}

// TTLTable maps endpoint suffixes to freshness windows. The longest matching
// suffix wins; endpoints matching no rule use Default.
type TTLTable struct {
	Rules   map[string]time.Duration
	Default time.Duration
}

// DefaultTTLTable returns the per-endpoint freshness windows. Volatile
// listings expire quickly while near-static profile data lives for hours.
func DefaultTTLTable() TTLTable {
	return TTLTable{
		Rules: map[string]time.Duration{
			"twitter/user/info":              time.Hour,
			"twitter/user/batch_info_by_ids": time.Hour,
			"twitter/user/last_tweets":       10 * time.Minute,
			"twitter/tweet/advanced_search":  5 * time.Minute,
			"twitter/user/followers":         2 * time.Hour,
			"twitter/user/followings":        2 * time.Hour,
			"twitter/tweet/replies":          15 * time.Minute,
			"twitter/tweet/quotes":           15 * time.Minute,
			"twitter/list/tweets":            30 * time.Minute,
		},
		Default: defaultCacheTTL,
	}
}

// For returns the freshness window of endpoint.
func (t TTLTable) For(endpoint string) time.Duration {
	best := ""
	for suffix := range t.Rules {
		if strings.HasSuffix(endpoint, suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best != "" {
		return t.Rules[best]
	}
	return t.Default
}

// CollectionRules maps endpoint suffixes to the payload key holding their
// counted collection. A cached payload for such an endpoint only serves a
// request when it holds at least maxResults items; a smaller payload would
// silently truncate the caller's window.
type CollectionRules map[string]string

// DefaultCollectionRules marks search results as a counted collection.
func DefaultCollectionRules() CollectionRules {
	return CollectionRules{
		"tweet/advanced_search": "tweets",
	}
}

// CollectionKey returns the counted collection key for endpoint, if any.
func (r CollectionRules) CollectionKey(endpoint string) (string, bool) {
	best := ""
	for suffix := range r {
		if strings.HasSuffix(endpoint, suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best == "" {
		return "", false
	}
	return r[best], true
}

// Sufficient reports whether a cached payload can serve a request capped at
// maxResults items.
func (r CollectionRules) Sufficient(endpoint string, payload Response, maxResults int) bool {
	if maxResults <= 0 {
		return true
	}
	key, ok := r.CollectionKey(endpoint)
	if !ok {
		return true
	}
	items, ok := payload.collectionAt(key)
	if !ok {
		return false
	}
	return len(items) >= maxResults
}

// CacheKey derives the deterministic key of a call from its endpoint, its
// parameters in canonical order, and the requested result count. Calls that
// differ only in maxResults get distinct keys.
func CacheKey(endpoint string, params Params, maxResults int) string {
	paramsJSON := ""
	if len(params) > 0 {
		if b, err := json.Marshal(params); err == nil {
			paramsJSON = string(b)
		}
	}
	key := endpoint + "_" + paramsJSON
	if maxResults > 0 {
		key += "_" + strconv.Itoa(maxResults)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// cacheEnvelope is the on-disk shape of one entry.
type cacheEnvelope struct {
	Timestamp time.Time `json:"timestamp"`
	Endpoint  string    `json:"endpoint"`
	Data      Response  `json:"data"`
}

// DiskCacheConfig configures a DiskCache. Zero values fall back to the
// defaults noted on each field.
type DiskCacheConfig struct {
	// Dir is the cache directory, created if missing. Default ".hemat_cache".
	Dir string
	// MaxSizeMB caps the total size of cached files. Default 100.
	MaxSizeMB int
	// TTL sets per-endpoint freshness windows. Default DefaultTTLTable().
	TTL TTLTable
	// Collections marks endpoints whose payloads are counted collections.
	// Default DefaultCollectionRules().
	Collections CollectionRules
	// Clock drives expiry. Default is the system clock.
	Clock Clock
	// Logger receives decode and eviction notices. Default discards.
	Logger Logger
}

// DiskCache stores one JSON file per entry under a directory. When the
// directory grows past its capacity, the oldest files by modification time
// are evicted until the cache is back at 80% of capacity.
type DiskCache struct {
	mu          sync.Mutex
	dir         string
	maxBytes    int64
	ttl         TTLTable
	collections CollectionRules
	clock       Clock
	logger      Logger

	hits      int64
	misses    int64
	sizeBytes int64
	fileCount int
}

var _ ResponseCache = (*DiskCache)(nil)

// NewDiskCache creates the cache directory if needed and indexes any entries
// already present.
func NewDiskCache(cfg DiskCacheConfig) (*DiskCache, error) {
	if cfg.Dir == "" {
		cfg.Dir = defaultCacheDir
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultCacheSizeMB
	}
	if cfg.TTL.Rules == nil && cfg.TTL.Default == 0 {
		cfg.TTL = DefaultTTLTable()
	}
	if cfg.Collections == nil {
		cfg.Collections = DefaultCollectionRules()
	}
	if cfg.Clock == nil {
		cfg.Clock = NewClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger{}
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
	}

	c := &DiskCache{
		dir:         cfg.Dir,
		maxBytes:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		ttl:         cfg.TTL,
		collections: cfg.Collections,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	c.recalcLocked()
	return c, nil
}

// Get implements ResponseCache. Expired, undecodable, and insufficient
// entries all count as misses; expired files stay on disk until eviction or
// an overwrite reclaims them.
func (c *DiskCache) Get(endpoint string, params Params, maxResults int) (Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.pathFor(endpoint, params, maxResults))
	if err != nil {
		c.misses++
		return nil, false
	}

	var env cacheEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn("Failed to decode cache entry", "endpoint", endpoint, "error", err)
		c.misses++
		return nil, false
	}

	if c.clock.Now().Sub(env.Timestamp) >= c.ttl.For(endpoint) {
		c.logger.Debug("Cache entry expired", "endpoint", endpoint)
		c.misses++
		return nil, false
	}

	if !c.collections.Sufficient(endpoint, env.Data, maxResults) {
		c.logger.Debug("Cache entry has too few items", "endpoint", endpoint, "maxResults", maxResults)
		c.misses++
		return nil, false
	}

	c.hits++
	return env.Data, true
}

// Set implements ResponseCache. When the cache is over capacity the oldest
// entries are evicted before the write. The entry goes through a temporary
// file and a rename so readers never observe a partial entry.
func (c *DiskCache) Set(endpoint string, params Params, payload Response, maxResults int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sizeBytes > c.maxBytes {
		c.evictLocked()
	}

	env := cacheEnvelope{
		Timestamp: c.clock.Now(),
		Endpoint:  endpoint,
		Data:      payload,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache entry for %s: %w", endpoint, err)
	}

	path := c.pathFor(endpoint, params, maxResults)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache entry for %s: %w", endpoint, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write cache entry for %s: %w", endpoint, err)
	}

	c.sizeBytes += int64(len(raw))
	c.fileCount++
	return nil
}

// Clear implements ResponseCache.
func (c *DiskCache) Clear(endpoint string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		if endpoint != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			var env cacheEnvelope
			if err := json.Unmarshal(raw, &env); err != nil || env.Endpoint != endpoint {
				continue
			}
		}
		if os.Remove(path) == nil {
			removed++
		}
	}

	c.recalcLocked()
	return removed
}

// Stats implements ResponseCache. The disk footprint is recounted on every
// call so overwrites and external deletions do not skew it.
func (c *DiskCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.recalcLocked()
	hitRate := 0.0
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return CacheStats{
		Hits:           c.hits,
		Misses:         c.misses,
		HitRatePercent: hitRate,
		SizeBytes:      c.sizeBytes,
		SizeMB:         float64(c.sizeBytes) / (1024 * 1024),
		Files:          c.fileCount,
		MaxSizeMB:      float64(c.maxBytes) / (1024 * 1024),
	}
}

func (c *DiskCache) pathFor(endpoint string, params Params, maxResults int) string {
	return filepath.Join(c.dir, CacheKey(endpoint, params, maxResults)+".json")
}

// recalcLocked recounts the cached files and their total size. Caller must
// hold c.mu.
func (c *DiskCache) recalcLocked() {
	var total int64
	files := 0
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.sizeBytes, c.fileCount = 0, 0
		return
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		total += info.Size()
		files++
	}
	c.sizeBytes = total
	c.fileCount = files
}

// evictLocked removes the oldest files by modification time until the cache
// is at or below the eviction target. Caller must hold c.mu.
func (c *DiskCache) evictLocked() {
	c.recalcLocked()

	type fileInfo struct {
		path  string
		mtime time.Time
		size  int64
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	files := make([]fileInfo, 0, len(entries))
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			path:  filepath.Join(c.dir, de.Name()),
			mtime: info.ModTime(),
			size:  info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mtime.Before(files[j].mtime) })

	target := int64(float64(c.maxBytes) * evictTargetRatio)
	removed := 0
	for _, fi := range files {
		if c.sizeBytes <= target {
			break
		}
		if err := os.Remove(fi.path); err != nil {
			continue
		}
		c.sizeBytes -= fi.size
		c.fileCount--
		removed++
	}
	if removed > 0 {
		c.logger.Info("Evicted cache entries", "count", removed, "sizeBytes", c.sizeBytes)
	}
}
