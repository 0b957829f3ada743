package hemat

import (
	"sync/atomic"
	"time"
)

// CircuitState represents the state of the circuit breaker.
type CircuitState int64

const (
	// StateClosed allows requests through.
	StateClosed CircuitState = iota
	// StateOpen refuses requests until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows probe requests while deciding whether to close.
	StateHalfOpen
)

// String returns a readable state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures failure detection and recovery.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of failures that opens the circuit.
	// Default 5.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before allowing a
	// probe. Default 60s.
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of probe successes that close the
	// circuit again. Default 2.
	SuccessThreshold int
	// Clock drives recovery timing. Default is the system clock.
	Clock Clock
}

// CircuitBreaker trips after repeated upstream failures so a degraded API is
// not hammered with paid calls. State transitions use atomics only.
type CircuitBreaker struct {
	config      CircuitBreakerConfig
	state       int64
	failures    int64
	successes   int64
	lastFailure int64
	clock       Clock
}

// NewCircuitBreaker creates a circuit breaker, filling unset config fields
// with defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.Clock == nil {
		config.Clock = NewClock()
	}

	return &CircuitBreaker{
		config: config,
		state:  int64(StateClosed),
		clock:  config.Clock,
	}
}

// Allow checks whether a request may pass through the circuit breaker.
func (cb *CircuitBreaker) Allow() bool {
	now := cb.clock.Now().UnixNano()
	state := CircuitState(atomic.LoadInt64(&cb.state))

	switch state {
	case StateClosed:
		return true
	case StateOpen:
		lastFailure := atomic.LoadInt64(&cb.lastFailure)
		if now-lastFailure >= int64(cb.config.RecoveryTimeout) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				atomic.StoreInt64(&cb.successes, 0)
				return true
			}
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure counts a failed call toward opening the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	now := cb.clock.Now().UnixNano()
	atomic.StoreInt64(&cb.lastFailure, now)

	state := CircuitState(atomic.LoadInt64(&cb.state))

	switch state {
	case StateClosed:
		failures := atomic.AddInt64(&cb.failures, 1)
		if failures >= int64(cb.config.FailureThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateOpen))
		}
	case StateOpen:
		// Already open, only lastFailure moves.
	case StateHalfOpen:
		// A failed probe reopens the circuit immediately.
		atomic.AddInt64(&cb.failures, 1)
		atomic.StoreInt64(&cb.state, int64(StateOpen))
		atomic.StoreInt64(&cb.successes, 0)
	}
}

// RecordSuccess counts a successful call toward closing the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	state := CircuitState(atomic.LoadInt64(&cb.state))

	switch state {
	case StateClosed, StateOpen:
		// Nothing to advance outside the probe phase.
	case StateHalfOpen:
		successes := atomic.AddInt64(&cb.successes, 1)
		if successes >= int64(cb.config.SuccessThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateClosed))
			atomic.StoreInt64(&cb.failures, 0)
			atomic.StoreInt64(&cb.successes, 0)
		}
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt64(&cb.state))
}
