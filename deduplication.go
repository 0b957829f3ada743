package hemat

import (
	"context"
	"hash/fnv"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// DeduplicationEntry represents an in-flight call shared between callers.
type DeduplicationEntry struct {
	payload Response
	err     error
	done    chan struct{}
	mu      sync.Mutex
	waiters int
}

// DeduplicationTracker coalesces identical concurrent calls so only one
// billed request goes upstream. Followers receive the owner's result.
type DeduplicationTracker struct {
	mu      sync.RWMutex
	entries map[string]*DeduplicationEntry
}

// NewDeduplicationTracker returns an in-memory deduplication tracker.
func NewDeduplicationTracker() *DeduplicationTracker {
	return &DeduplicationTracker{
		entries: make(map[string]*DeduplicationEntry),
	}
}

// GetOrCreateEntry returns an existing entry (owner=false) or creates a new
// one (owner=true). The owner must call Complete exactly once.
func (dt *DeduplicationTracker) GetOrCreateEntry(key string) (*DeduplicationEntry, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	if entry, exists := dt.entries[key]; exists {
		entry.mu.Lock()
		entry.waiters++
		entry.mu.Unlock()
		return entry, false
	}

	entry := &DeduplicationEntry{
		done:    make(chan struct{}),
		waiters: 1,
	}
	dt.entries[key] = entry
	return entry, true
}

// Complete finalizes an entry and releases waiters. The entry lingers briefly
// so callers racing with completion still find it.
func (dt *DeduplicationTracker) Complete(key string, payload Response, err error) {
	dt.mu.Lock()
	entry, exists := dt.entries[key]
	dt.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.payload = payload
	entry.err = err
	close(entry.done)
	entry.mu.Unlock()

	time.AfterFunc(100*time.Millisecond, func() {
		dt.mu.Lock()
		delete(dt.entries, key)
		dt.mu.Unlock()
	})
}

// Wait blocks until the owning call completes or the context cancels. Each
// waiter gets its own copy of the payload's top level; nested values are
// shared and must be treated as read-only.
func (entry *DeduplicationEntry) Wait(ctx context.Context) (Response, error) {
	select {
	case <-entry.done:
		entry.mu.Lock()
		payload := entry.payload
		err := entry.err
		entry.mu.Unlock()
		if payload == nil {
			return nil, err
		}
		out := make(Response, len(payload))
		for k, v := range payload {
			out[k] = v
		}
		return out, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeduplicationKeyFunc builds a key identifying identical in-flight calls.
type DeduplicationKeyFunc func(method, endpoint string, params Params, maxResults int) string

// DefaultDeduplicationKeyFunc keys a call by method plus the same canonical
// identity the cache uses.
func DefaultDeduplicationKeyFunc(method, endpoint string, params Params, maxResults int) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(CacheKey(endpoint, params, maxResults)))
	return strconv.FormatUint(h.Sum64(), 16)
}

// DeduplicationCondition decides whether a call is eligible for coalescing.
type DeduplicationCondition func(method, endpoint string) bool

// DefaultDeduplicationCondition coalesces read calls only.
func DefaultDeduplicationCondition(method, endpoint string) bool {
	return method == http.MethodGet
}
