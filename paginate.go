package hemat

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

const (
	// defaultEmptyPageThreshold is how many consecutive empty pages an eager
	// walk tolerates before StopOnEmpty ends it.
	defaultEmptyPageThreshold = 3

	// lazyEmptyPageThreshold is the empty page tolerance of the lazy walk.
	// One empty page ends a lazy sequence so a consumer pulling items never
	// stalls behind a run of empty fetches.
	lazyEmptyPageThreshold = 1
)

// PageFetcher returns one page of a cursor sequence. The empty cursor
// requests the first page.
type PageFetcher func(ctx context.Context, cursor string) (Response, error)

// PaginationConfig shapes a single pagination run.
//
// Zero caps mean unbounded in the package level Paginate and PaginateSeq
// functions. The Client pagination methods instead fill zero caps from the
// client's Limits and clamp larger asks down to them, so a shared client can
// never be talked into an unbounded walk.
type PaginationConfig struct {
	// ResourceKey is the payload key holding each page's items.
	ResourceKey string

	// MaxPages caps how many pages are fetched.
	MaxPages int

	// MaxItems caps how many items are produced. Truncation keeps the
	// earliest fetched items.
	MaxItems int

	// InitialCursor resumes a walk from a previously observed cursor instead
	// of the first page.
	InitialCursor string

	// StopOnEmpty ends an eager walk once MaxEmptyPages consecutive empty
	// pages arrive, even while the upstream keeps claiming more pages. The
	// lazy walk always stops on empty pages regardless of this flag.
	StopOnEmpty bool

	// MaxEmptyPages is the consecutive empty page threshold. Zero selects
	// the form's default.
	MaxEmptyPages int
}

// extractPagination reads the upstream's paging fields from a page payload.
// When both has_next_page and next_cursor are present they are authoritative,
// except that a true flag with an empty cursor is an upstream inconsistency
// treated as the end of the sequence. Payloads using only a cursor field fall
// back to the first non-empty of next_cursor, next_token, and next_page.
func extractPagination(payload Response) (hasNext bool, cursor string) {
	_, flagPresent := payload["has_next_page"]
	_, cursorPresent := payload["next_cursor"]
	if flagPresent && cursorPresent {
		flag, _ := payload["has_next_page"].(bool)
		next, _ := payload["next_cursor"].(string)
		if flag && next == "" {
			return false, ""
		}
		return flag, next
	}
	for _, key := range []string{"next_cursor", "next_token", "next_page"} {
		if next, ok := payload[key].(string); ok && next != "" {
			return true, next
		}
	}
	return false, ""
}

// walkPages is the cursor walk shared by the eager and lazy forms. Items are
// passed to yield in arrival order; a false return abandons the walk. Fetch
// and payload shape errors are yielded once as the final pair.
func walkPages(ctx context.Context, fetch PageFetcher, cfg PaginationConfig, yield func(map[string]interface{}, error) bool) {
	cursor := cfg.InitialCursor
	pages := 0
	produced := 0
	emptyStreak := 0

	for {
		if cfg.MaxPages > 0 && pages >= cfg.MaxPages {
			return
		}
		if cfg.MaxItems > 0 && produced >= cfg.MaxItems {
			return
		}

		payload, err := fetch(ctx, cursor)
		if err != nil {
			yield(nil, err)
			return
		}
		pages++

		items, ok := payload.collectionAt(cfg.ResourceKey)
		if !ok {
			yield(nil, &APIError{
				Type:    ErrorTypePagination,
				Message: fmt.Sprintf("expected a list under %q, got %T", cfg.ResourceKey, payload[cfg.ResourceKey]),
			})
			return
		}
		if len(items) == 0 {
			emptyStreak++
		} else {
			emptyStreak = 0
		}

		for _, item := range items {
			if !yield(item, nil) {
				return
			}
			produced++
			if cfg.MaxItems > 0 && produced >= cfg.MaxItems {
				return
			}
		}

		hasNext, next := extractPagination(payload)
		if !hasNext || next == "" {
			return
		}
		if cfg.StopOnEmpty && emptyStreak >= cfg.MaxEmptyPages {
			return
		}
		cursor = next
	}
}

// Paginate eagerly walks a cursor sequence and returns every item it
// produced, in arrival order. The walk stops at cfg's page and item caps, at
// the upstream's end of sequence, and, when StopOnEmpty is set, after
// MaxEmptyPages consecutive empty pages. A fetch or payload shape error
// discards the partial result.
func Paginate(ctx context.Context, fetch PageFetcher, cfg PaginationConfig) ([]map[string]interface{}, error) {
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = defaultEmptyPageThreshold
	}

	var capacity int
	if cfg.MaxItems > 0 {
		capacity = cfg.MaxItems
	}
	items := make([]map[string]interface{}, 0, capacity)

	var walkErr error
	walkPages(ctx, fetch, cfg, func(item map[string]interface{}, err error) bool {
		if err != nil {
			walkErr = err
			return false
		}
		items = append(items, item)
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return items, nil
}

// PaginateSeq returns the lazy form of the walk: a sequence that fetches a
// page only when the consumer pulls past a page boundary. Ranging over the
// sequence again restarts from the initial cursor. Breaking out of the loop
// abandons the walk; no further pages are fetched. A terminal error is
// yielded once as the final pair with a nil item.
func PaginateSeq(ctx context.Context, fetch PageFetcher, cfg PaginationConfig) iter.Seq2[map[string]interface{}, error] {
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = lazyEmptyPageThreshold
	}
	cfg.StopOnEmpty = true

	return func(yield func(map[string]interface{}, error) bool) {
		walkPages(ctx, fetch, cfg, yield)
	}
}

// pageFetcher binds endpoint and params into a fetch-one-page capability.
// The cursor joins the query parameters only when non-empty, so the first
// page's cache identity matches a direct uncursored call.
func (c *Client) pageFetcher(endpoint string, params Params) PageFetcher {
	return func(ctx context.Context, cursor string) (Response, error) {
		p := params
		if cursor != "" {
			p = params.clone()
			p["cursor"] = cursor
		}
		return c.Get(ctx, endpoint, p)
	}
}

// fillPagination applies the client's cost control caps: zero caps take the
// configured defaults and larger asks are clamped down to them.
func (c *Client) fillPagination(cfg PaginationConfig) PaginationConfig {
	if c.limits.MaxPages > 0 && (cfg.MaxPages <= 0 || cfg.MaxPages > c.limits.MaxPages) {
		cfg.MaxPages = c.limits.MaxPages
	}
	if c.limits.MaxResults > 0 && (cfg.MaxItems <= 0 || cfg.MaxItems > c.limits.MaxResults) {
		cfg.MaxItems = c.limits.MaxResults
	}
	return cfg
}

// Paginate eagerly collects the items stored under cfg.ResourceKey across
// endpoint's pages. Every page goes through the full request pipeline, so
// budget, cache, and rate limit rules apply per page.
func (c *Client) Paginate(ctx context.Context, endpoint string, params Params, cfg PaginationConfig) ([]map[string]interface{}, error) {
	return Paginate(ctx, c.pageFetcher(endpoint, params), c.fillPagination(cfg))
}

// PaginateSeq returns a lazy item sequence over endpoint's pages. Pages are
// fetched, and billed, only as the consumer advances.
func (c *Client) PaginateSeq(ctx context.Context, endpoint string, params Params, cfg PaginationConfig) iter.Seq2[map[string]interface{}, error] {
	return PaginateSeq(ctx, c.pageFetcher(endpoint, params), c.fillPagination(cfg))
}

// FetchPageSequence collects up to maxItems items from endpoint across up to
// maxPages pages, deriving the resource key from the endpoint path. Zero
// caps take the client defaults.
func (c *Client) FetchPageSequence(ctx context.Context, endpoint string, params Params, maxPages, maxItems int) ([]map[string]interface{}, error) {
	return c.Paginate(ctx, endpoint, params, PaginationConfig{
		ResourceKey: resourceKeyFor(endpoint),
		MaxPages:    maxPages,
		MaxItems:    maxItems,
	})
}

// resourceKeyFor maps an endpoint to the payload key its pages store items
// under. Follower listings use their own keys; every other paged endpoint
// returns tweets.
func resourceKeyFor(endpoint string) string {
	switch {
	case strings.HasSuffix(endpoint, "user/followers"):
		return "followers"
	case strings.HasSuffix(endpoint, "user/followings"):
		return "followings"
	default:
		return "tweets"
	}
}
