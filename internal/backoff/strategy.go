// Package backoff computes retry delays for the client's retry loop.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy is the interface for retry delay algorithms. factor is the delay
// of the first retry, max caps the result, and jitter in [0, 1] adds a random
// fraction of the computed delay.
type Strategy interface {
	Calculate(attempt int, factor, max time.Duration, jitter float64) time.Duration
}

// ExponentialStrategy doubles the delay on every attempt: factor * 2^attempt,
// with optional uniform jitter on top. With jitter 0 the sequence is fully
// deterministic, which keeps paced clients predictable.
type ExponentialStrategy struct{}

// Calculate implements the Strategy interface.
func (s ExponentialStrategy) Calculate(attempt int, factor, max time.Duration, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(factor) * pow(2, attempt))
	if delay < 0 || delay > max {
		delay = max
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		jitterAmount := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+jitterAmount > max {
			delay = max
		} else {
			delay += jitterAmount
		}
	}
	return delay
}

// DecorrelatedJitterStrategy implements decorrelated jitter as per the AWS
// architecture blog. It spreads retries of concurrent callers more evenly
// than exponential jitter at the cost of determinism.
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, factor, max time.Duration, jitter float64) time.Duration {
	// Formula: random_between(base, min(cap, base * 3^attempt))
	if attempt <= 0 {
		return factor
	}

	// Prevent overflow by limiting attempt
	if attempt > 10 {
		attempt = 10
	}

	base := float64(factor)
	upper := base * pow(3, attempt)

	maxFloat := float64(max)
	if upper > maxFloat || upper < 0 {
		upper = maxFloat
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

// clampJitter ensures jitter is within valid bounds [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
