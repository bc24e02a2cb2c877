// Package resilience packages the error-handling patterns used around flaky
// tool calls and model providers: a circuit breaker that blocks calls to a
// failing dependency and a retry helper with exponential backoff.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fogfish/opts"
)

// ErrCircuitOpen is returned while the breaker is blocking calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the current mode of a circuit breaker.
type State int

const (
	// StateClosed lets calls through and counts failures.
	StateClosed State = iota
	// StateOpen blocks every call until the reset timeout elapses.
	StateOpen
	// StateHalfOpen lets a probe call through to test recovery.
	StateHalfOpen
)

func (s State) String() string {
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

// CircuitBreaker protects a dependency from cascading failures. Consecutive
// failures trip the breaker open; after the reset timeout a probe call is
// allowed and its outcome decides between closing again and re-opening.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu       sync.Mutex
	now      func() time.Time
	state    State
	failures int
	openedAt time.Time
}

var (
	// WithFailureThreshold sets how many consecutive failures trip the
	// breaker.
	WithFailureThreshold = opts.ForName[CircuitBreaker, int]("failureThreshold")

	// WithResetTimeout sets how long the breaker stays open before probing.
	WithResetTimeout = opts.ForName[CircuitBreaker, time.Duration]("resetTimeout")
)

// NewCircuitBreaker builds a breaker that trips after 3 consecutive failures
// and probes again after 10 seconds, unless configured otherwise.
func NewCircuitBreaker(options ...opts.Option[CircuitBreaker]) (*CircuitBreaker, error) {
	cb := &CircuitBreaker{
		failureThreshold: 3,
		resetTimeout:     10 * time.Second,
		now:              time.Now,
	}
	if err := opts.Apply(cb, options); err != nil {
		return nil, err
	}
	return cb, nil
}

// State reports the breaker's current mode.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// currentState accounts for timeout-driven open -> half-open transitions.
// Callers must hold the mutex.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) > cb.resetTimeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// Execute runs fn through the breaker. While the breaker is open the call is
// rejected with ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := cb.allow(); err != nil {
		return "", err
	}

	result, err := fn(ctx)
	cb.record(err)
	return result, err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentState() == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state != StateClosed {
			slog.Info("circuit breaker closed after successful probe")
		}
		cb.state = StateClosed
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
		cb.openedAt = cb.now()
		slog.Warn("circuit breaker opened",
			"failures", cb.failures,
			"reset_timeout", cb.resetTimeout)
	}
}
