package hemat

import (
	"context"
	"math"
	"sync"
	"time"
)

const (
	defaultMaxPerMinute = 60
	defaultMinDelay     = 500 * time.Millisecond

	// rateWindow is the span of the sliding request window.
	rateWindow = time.Minute
)

// RateLimiterConfig configures a RateLimiter. Zero values fall back to the
// defaults noted on each field.
type RateLimiterConfig struct {
	// Budget, when set, scales the pacing delay up as the daily budget is
	// consumed and for calls estimated to cost more than a flat request.
	Budget *BudgetTracker
	// MaxPerMinute caps requests inside any sliding minute. Default 60.
	MaxPerMinute int
	// MinDelay is the base spacing between consecutive requests.
	// Default 500ms.
	MinDelay time.Duration
	// DisableAdaptive turns off budget-aware delay scaling.
	DisableAdaptive bool
	// Clock drives waiting. Default is the system clock.
	Clock Clock
	// Logger receives wait notices. Default discards.
	Logger Logger
}

// RateLimiterStats is a snapshot of the limiter's sliding window.
type RateLimiterStats struct {
	CurrentWindow int           `json:"current_minute_requests"`
	MaxPerMinute  int           `json:"max_per_minute"`
	UsagePercent  float64       `json:"usage_percent"`
	MinDelay      time.Duration `json:"min_delay"`
	Adaptive      bool          `json:"adaptive_delay"`
	AvgPerSecond  float64       `json:"avg_requests_per_second"`
	LastRequest   time.Time     `json:"last_request"`
}

// RateLimiter paces outgoing requests with a sliding one-minute window plus
// a minimum spacing between consecutive calls. With a budget attached, the
// spacing stretches as the day's budget is consumed, slowing the client down
// before the ledger starts rejecting calls outright.
//
// WaitIfNeeded sleeps while holding the limiter's own lock, serializing
// concurrent callers through the same pacing. It must never be called while
// holding another component's lock.
type RateLimiter struct {
	mu              sync.Mutex
	budget          *BudgetTracker
	maxPerMinute    int
	minDelay        time.Duration
	disableAdaptive bool
	clock           Clock
	logger          Logger

	window      []time.Time
	lastRequest time.Time
}

// NewRateLimiter creates a limiter from cfg, filling unset fields with
// defaults.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.MaxPerMinute <= 0 {
		cfg.MaxPerMinute = defaultMaxPerMinute
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = defaultMinDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = NewClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger{}
	}
	return &RateLimiter{
		budget:          cfg.Budget,
		maxPerMinute:    cfg.MaxPerMinute,
		minDelay:        cfg.MinDelay,
		disableAdaptive: cfg.DisableAdaptive,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
	}
}

// WaitIfNeeded blocks until a request to endpoint may proceed and returns
// the duration actually waited. The wait is the larger of the sliding window
// wait (when the last minute is full, until the oldest timestamp leaves the
// window) and the pacing delay still owed since the previous request.
//
// Cancellation aborts the wait without recording a timestamp, so an aborted
// call does not consume window capacity.
func (r *RateLimiter) WaitIfNeeded(ctx context.Context, endpoint string, estimatedCost float64) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.pruneLocked(now)

	var wait time.Duration
	if len(r.window) >= r.maxPerMinute {
		oldest := r.window[0]
		if windowWait := oldest.Add(rateWindow).Sub(now); windowWait > 0 {
			wait = windowWait
			r.logger.Info("Rate limit window full",
				"maxPerMinute", r.maxPerMinute,
				"wait", wait,
			)
		}
	}

	if !r.lastRequest.IsZero() {
		sinceLast := now.Sub(r.lastRequest)
		if required := r.requiredDelay(estimatedCost); sinceLast < required {
			if delay := required - sinceLast; delay > wait {
				wait = delay
			}
		}
	}

	if wait > 0 {
		r.logger.Debug("Pacing request", "endpoint", endpoint, "wait", wait)
		if err := r.clock.Sleep(ctx, wait); err != nil {
			return 0, err
		}
	}

	recorded := r.clock.Now()
	r.window = append(r.window, recorded)
	r.lastRequest = recorded
	return wait, nil
}

// AddDelay sleeps for d, or for the configured minimum delay when d is not
// positive. Callers use it to space out bursts the limiter cannot see, such
// as consecutive batch calls.
func (r *RateLimiter) AddDelay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = r.minDelay
	}
	return r.clock.Sleep(ctx, d)
}

// Stats returns a snapshot of the current window.
func (r *RateLimiter) Stats() RateLimiterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	r.pruneLocked(now)

	avg := 0.0
	if len(r.window) >= 2 {
		span := r.window[len(r.window)-1].Sub(r.window[0]).Seconds()
		if span > 0 {
			avg = float64(len(r.window)-1) / span
		}
	}
	return RateLimiterStats{
		CurrentWindow: len(r.window),
		MaxPerMinute:  r.maxPerMinute,
		UsagePercent:  float64(len(r.window)) / float64(r.maxPerMinute) * 100,
		MinDelay:      r.minDelay,
		Adaptive:      !r.disableAdaptive,
		AvgPerSecond:  avg,
		LastRequest:   r.lastRequest,
	}
}

// pruneLocked drops window timestamps a full minute old or older. Caller
// must hold r.mu.
func (r *RateLimiter) pruneLocked(now time.Time) {
	cut := 0
	for cut < len(r.window) && now.Sub(r.window[cut]) >= rateWindow {
		cut++
	}
	if cut > 0 {
		r.window = append(r.window[:0], r.window[cut:]...)
	}
}

// requiredDelay computes the pacing delay for the next request. The base
// delay stretches by the budget usage band and again for calls costing more
// than a flat request:
//
//	usage < 50%:  base
//	50% to 75%:   grows linearly to 2x
//	75% to 90%:   3x growing to 6x
//	90% and up:   6x plus 4x per percent over 90
func (r *RateLimiter) requiredDelay(estimatedCost float64) time.Duration {
	delay := float64(r.minDelay)

	if !r.disableAdaptive && r.budget != nil {
		percent := r.budget.Status().PercentUsed
		switch {
		case percent < 50:
			// base delay
		case percent < 75:
			delay *= 1 + (percent-50)/25
		case percent < 90:
			delay *= 3 + (percent-75)/5
		default:
			delay *= 6 + (percent-90)*4
		}
	}

	if estimatedCost > 0 && r.budget != nil {
		base := r.budget.RequestRate()
		if base > 0 && estimatedCost > base {
			costFactor := math.Min(5, estimatedCost/base)
			if scale := costFactor / 2; scale > 1 {
				delay *= scale
			}
		}
	}

	return time.Duration(delay)
}
