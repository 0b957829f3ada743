package backoff

import (
	"time"
)

// Calculator computes retry delays using a configurable strategy. It keeps
// the delay logic in one place instead of spreading it across the client and
// the retry policy.
type Calculator struct {
	strategy Strategy
}

// NewCalculator creates a calculator with the given strategy.
func NewCalculator(strategy Strategy) *Calculator {
	return &Calculator{
		strategy: strategy,
	}
}

// Calculate computes the delay before the retry following attempt.
func (c *Calculator) Calculate(attempt int, factor, max time.Duration, jitter float64) time.Duration {
	return c.strategy.Calculate(attempt, factor, max, jitter)
}

// SetStrategy updates the backoff strategy used by this calculator.
func (c *Calculator) SetStrategy(strategy Strategy) {
	c.strategy = strategy
}

// GetStrategy returns the strategy currently in use.
func (c *Calculator) GetStrategy() Strategy {
	return c.strategy
}

// NewExponentialCalculator returns a calculator using doubling backoff.
// This is the default used by the client.
func NewExponentialCalculator() *Calculator {
	return NewCalculator(ExponentialStrategy{})
}

// NewDecorrelatedJitterCalculator returns a calculator using AWS-style
// decorrelated jitter.
func NewDecorrelatedJitterCalculator() *Calculator {
	return NewCalculator(DecorrelatedJitterStrategy{})
}
