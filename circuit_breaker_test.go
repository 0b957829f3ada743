package hemat

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewCircuitBreaker(t *testing.T) {
	config := CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	}
	cb := NewCircuitBreaker(config)

	if cb == nil {
		t.Fatal("NewCircuitBreaker returned nil")
	}
	if cb.config.FailureThreshold != 3 {
		t.Errorf("Expected FailureThreshold 3, got %d", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 30*time.Second {
		t.Errorf("Expected RecoveryTimeout 30s, got %v", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 1 {
		t.Errorf("Expected SuccessThreshold 1, got %d", cb.config.SuccessThreshold)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state StateClosed, got %v", cb.State())
	}
}

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("Expected default FailureThreshold 5, got %d", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("Expected default RecoveryTimeout 60s, got %v", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("Expected default SuccessThreshold 2, got %d", cb.config.SuccessThreshold)
	}
	if cb.clock == nil {
		t.Error("Expected default clock to be set")
	}
}

func TestCircuitBreakerAllowClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	if !cb.Allow() {
		t.Error("Expected Allow to return true in closed state")
	}
}

func TestCircuitBreakerAllowOpen(t *testing.T) {
	clk := newFakeClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
		Clock:            clk,
	})

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected state StateOpen after failure, got %v", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected Allow to return false while open")
	}
}

func TestCircuitBreakerAllowHalfOpen(t *testing.T) {
	clk := newFakeClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
		Clock:            clk,
	})

	cb.RecordFailure()
	clk.Advance(60 * time.Millisecond)

	if !cb.Allow() {
		t.Error("Expected Allow to return true after recovery timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("Expected state StateHalfOpen after probe allowed, got %v", cb.State())
	}
	if !cb.Allow() {
		t.Error("Expected Allow to return true in half-open state")
	}
}

func TestCircuitBreakerRecordFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure()
	if got := atomic.LoadInt64(&cb.failures); got != 1 {
		t.Errorf("Expected 1 failure, got %d", got)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected state StateClosed after 1 failure, got %v", cb.State())
	}

	cb.RecordFailure()
	if got := atomic.LoadInt64(&cb.failures); got != 2 {
		t.Errorf("Expected 2 failures, got %d", got)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected state StateClosed after 2 failures, got %v", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("Expected state StateOpen after 3 failures, got %v", cb.State())
	}

	// Further failures while open must not grow the counter.
	cb.RecordFailure()
	if got := atomic.LoadInt64(&cb.failures); got != 3 {
		t.Errorf("Expected failures to stay at 3 while open, got %d", got)
	}
}

func TestCircuitBreakerRecordSuccessClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure()
	cb.RecordSuccess()

	if got := atomic.LoadInt64(&cb.failures); got != 1 {
		t.Errorf("Expected failures to remain 1 after closed-state success, got %d", got)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected state StateClosed, got %v", cb.State())
	}
}

func TestCircuitBreakerRecordSuccessHalfOpen(t *testing.T) {
	clk := newFakeClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 2,
		Clock:            clk,
	})

	cb.RecordFailure()
	clk.Advance(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Expected probe to be allowed after recovery timeout")
	}

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Errorf("Expected state StateHalfOpen after 1 success, got %v", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("Expected state StateClosed after 2 successes, got %v", cb.State())
	}
	if got := atomic.LoadInt64(&cb.failures); got != 0 {
		t.Errorf("Expected failures reset to 0 after close, got %d", got)
	}
	if got := atomic.LoadInt64(&cb.successes); got != 0 {
		t.Errorf("Expected successes reset to 0 after close, got %d", got)
	}
}

func TestCircuitBreakerRecoveryTimeout(t *testing.T) {
	clk := newFakeClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
		Clock:            clk,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected state StateOpen, got %v", cb.State())
	}

	clk.Advance(99 * time.Millisecond)
	if cb.Allow() {
		t.Error("Expected Allow to return false before recovery timeout")
	}

	clk.Advance(1 * time.Millisecond)
	if !cb.Allow() {
		t.Error("Expected Allow to return true once recovery timeout elapsed")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("Expected state StateHalfOpen, got %v", cb.State())
	}
}

func TestCircuitBreakerStateTransitions(t *testing.T) {
	clk := newFakeClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 1,
		Clock:            clk,
	})

	// Closed to open.
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected state StateOpen, got %v", cb.State())
	}

	// Open to half-open.
	clk.Advance(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Expected probe to be allowed")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected state StateHalfOpen, got %v", cb.State())
	}

	// Half-open to closed.
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("Expected state StateClosed, got %v", cb.State())
	}
	if !cb.Allow() {
		t.Error("Expected Allow to return true after recovery")
	}
}

func TestCircuitBreakerHalfOpenFailure(t *testing.T) {
	clk := newFakeClock(time.Unix(1000, 0))
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  50 * time.Millisecond,
		SuccessThreshold: 2,
		Clock:            clk,
	})

	cb.RecordFailure()
	clk.Advance(60 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Expected probe to be allowed")
	}

	cb.RecordSuccess()
	cb.RecordFailure()

	if cb.State() != StateOpen {
		t.Errorf("Expected failed probe to reopen the circuit, got %v", cb.State())
	}
	if got := atomic.LoadInt64(&cb.successes); got != 0 {
		t.Errorf("Expected successes reset to 0 after reopen, got %d", got)
	}
	if cb.Allow() {
		t.Error("Expected Allow to return false after reopen")
	}
}

func TestCircuitBreakerConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 50,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 2,
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cb.Allow()
				if (id+j)%3 == 0 {
					cb.RecordFailure()
				} else {
					cb.RecordSuccess()
				}
				cb.State()
			}
		}(i)
	}
	wg.Wait()

	state := cb.State()
	if state != StateClosed && state != StateOpen && state != StateHalfOpen {
		t.Errorf("Expected a valid state after concurrent access, got %v", state)
	}
}

func TestCircuitBreakerWithZeroConfig(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	for i := 0; i < 4; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("Expected state StateClosed after %d failures, got %v", i+1, cb.State())
		}
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("Expected default threshold of 5 failures to open the circuit, got %v", cb.State())
	}
}

func TestCircuitBreakerStateString(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("Expected state string %q, got %q", tt.want, got)
		}
	}

	if StateClosed != 0 || StateOpen != 1 || StateHalfOpen != 2 {
		t.Errorf("Expected state values 0, 1, 2, got %d, %d, %d", int(StateClosed), int(StateOpen), int(StateHalfOpen))
	}
}
