package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/runnable"
)

// ErrCircuitOpen is returned for calls rejected by an open circuit.
var ErrCircuitOpen = errors.New("middleware: circuit breaker is open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed allows requests to pass through.
	StateClosed CircuitState = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows a limited number of probe requests.
	StateHalfOpen
)

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

// CircuitBreaker stops calling a failing runnable until it has had time to
// recover. It is safe for concurrent use and may guard several runnables.
type CircuitBreaker struct {
	name string

	maxFailures      int
	resetTimeout     time.Duration
	halfOpenRequests int
	onStateChange    func(from, to CircuitState)
	now              func() time.Time

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	probes   int
	passed   int

	totalRequests int64
	totalFailures int64
	totalRejected int64
	circuitOpens  int64
}

// CircuitOption configures a circuit breaker.
type CircuitOption func(*CircuitBreaker)

// WithMaxFailures sets how many consecutive failures open the circuit.
func WithMaxFailures(n int) CircuitOption {
	return func(cb *CircuitBreaker) { cb.maxFailures = n }
}

// WithResetTimeout sets how long the circuit stays open before probing.
func WithResetTimeout(d time.Duration) CircuitOption {
	return func(cb *CircuitBreaker) { cb.resetTimeout = d }
}

// WithHalfOpenRequests sets how many probes must succeed to close the
// circuit again.
func WithHalfOpenRequests(n int) CircuitOption {
	return func(cb *CircuitBreaker) { cb.halfOpenRequests = n }
}

// WithStateChangeCallback is called on every transition, outside the
// breaker's lock.
func WithStateChangeCallback(fn func(from, to CircuitState)) CircuitOption {
	return func(cb *CircuitBreaker) { cb.onStateChange = fn }
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(name string, opts ...CircuitOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		maxFailures:      5,
		resetTimeout:     30 * time.Second,
		halfOpenRequests: 1,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	cb.maxFailures = max(cb.maxFailures, 1)
	cb.halfOpenRequests = max(cb.halfOpenRequests, 1)
	return cb
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow admits a call or rejects it with ErrCircuitOpen.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	cb.totalRequests++
	var changed func()
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			cb.totalRejected++
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		changed = cb.transition(StateHalfOpen)
		cb.probes = 1
	case StateHalfOpen:
		if cb.probes >= cb.halfOpenRequests {
			cb.totalRejected++
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		cb.probes++
	}
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}
	return nil
}

// record updates the state with the outcome of an admitted call. A
// cancelled call says nothing about the health of the runnable.
func (cb *CircuitBreaker) record(err error) {
	if errors.Is(err, runnable.ErrCancelled) || errors.Is(err, context.Canceled) {
		cb.mu.Lock()
		if cb.state == StateHalfOpen {
			cb.probes--
		}
		cb.mu.Unlock()
		return
	}

	cb.mu.Lock()
	var changed func()
	switch {
	case err != nil:
		cb.totalFailures++
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			changed = cb.transition(StateOpen)
		}
	case cb.state == StateHalfOpen:
		cb.passed++
		if cb.passed >= cb.halfOpenRequests {
			changed = cb.transition(StateClosed)
		}
	default:
		cb.failures = 0
	}
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}
}

// transition moves to state with cb.mu held and returns the notification
// to run once the lock is released.
func (cb *CircuitBreaker) transition(state CircuitState) func() {
	if cb.state == state {
		return nil
	}
	from := cb.state
	cb.state = state
	switch state {
	case StateClosed:
		cb.failures = 0
	case StateOpen:
		cb.circuitOpens++
		cb.openedAt = cb.now()
	case StateHalfOpen:
		cb.probes = 0
		cb.passed = 0
	}
	if cb.onStateChange == nil {
		return nil
	}
	fn := cb.onStateChange
	return func() { fn(from, state) }
}

// CircuitMetrics contains circuit breaker statistics.
type CircuitMetrics struct {
	Name            string
	State           string
	TotalRequests   int64
	TotalFailures   int64
	TotalRejected   int64
	CircuitOpens    int64
	CurrentFailures int
}

// Metrics returns circuit breaker statistics.
func (cb *CircuitBreaker) Metrics() CircuitMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitMetrics{
		Name:            cb.name,
		State:           cb.state.String(),
		TotalRequests:   cb.totalRequests,
		TotalFailures:   cb.totalFailures,
		TotalRejected:   cb.totalRejected,
		CircuitOpens:    cb.circuitOpens,
		CurrentFailures: cb.failures,
	}
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changed := cb.transition(StateClosed)
	cb.failures = 0
	cb.mu.Unlock()
	if changed != nil {
		changed()
	}
}

// CircuitBreak guards the wrapped runnable with cb. A stream counts as one
// call that succeeds or fails when it ends.
func CircuitBreak(cb *CircuitBreaker) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		return Wrap(r,
			func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
				if err := cb.allow(); err != nil {
					return nil, err
				}
				out, err := r.Invoke(ctx, input, cfg)
				cb.record(err)
				return out, err
			},
			func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
				if err := cb.allow(); err != nil {
					return nil, err
				}
				st, err := r.Stream(ctx, input, cfg)
				if err != nil {
					cb.record(err)
					return nil, err
				}
				return relay(ctx, st, cfg, nil, func(err error) error {
					cb.record(err)
					return err
				}), nil
			},
		)
	}
}
