package hemat

import (
	"context"
	"time"
)

// Clock abstracts wall time and cancellable sleeping so that budget resets,
// cache expiry, and rate limiter waits can be driven by a synthetic clock in
// tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// Sleep blocks for d or until ctx is cancelled, whichever comes first.
	// It returns ctx.Err() when the wait was interrupted.
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock is the production Clock backed by the time package.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewClock returns the system clock used by default throughout the package.
func NewClock() Clock { return realClock{} }
