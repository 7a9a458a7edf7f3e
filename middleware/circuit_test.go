package middleware_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/middleware"
)

func TestCircuitBreaker(t *testing.T) {
	var transitions []string
	cb := middleware.NewCircuitBreaker("upstream",
		middleware.WithMaxFailures(2),
		middleware.WithResetTimeout(20*time.Millisecond),
		middleware.WithStateChangeCallback(func(from, to middleware.CircuitState) {
			transitions = append(transitions, from.String()+">"+to.String())
		}),
	)

	var failing atomic.Bool
	var calls atomic.Int32
	failing.Store(true)
	upstream := runnable.Fn("upstream", func(_ context.Context, n int) (int, error) {
		calls.Add(1)
		if failing.Load() {
			return 0, errBoom
		}
		return n, nil
	})
	r := middleware.CircuitBreak(cb)(upstream)
	call := func() error {
		_, err := r.Invoke(context.Background(), 1, runnable.Config{})
		return err
	}

	assert.ErrorIs(t, call(), errBoom)
	assert.Equal(t, middleware.StateClosed, cb.State())
	assert.ErrorIs(t, call(), errBoom)
	assert.Equal(t, middleware.StateOpen, cb.State())

	assert.ErrorIs(t, call(), middleware.ErrCircuitOpen)
	assert.EqualValues(t, 2, calls.Load())

	time.Sleep(30 * time.Millisecond)
	failing.Store(false)
	require.NoError(t, call())
	assert.Equal(t, middleware.StateClosed, cb.State())
	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)

	m := cb.Metrics()
	assert.Equal(t, "upstream", m.Name)
	assert.EqualValues(t, 4, m.TotalRequests)
	assert.EqualValues(t, 2, m.TotalFailures)
	assert.EqualValues(t, 1, m.TotalRejected)
	assert.EqualValues(t, 1, m.CircuitOpens)
}

func TestCircuitBreakerHalfOpenFailure(t *testing.T) {
	cb := middleware.NewCircuitBreaker("flaky",
		middleware.WithMaxFailures(1),
		middleware.WithResetTimeout(10*time.Millisecond),
	)
	r := middleware.CircuitBreak(cb)(broken())

	_, err := r.Invoke(context.Background(), 1, runnable.Config{})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, middleware.StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	_, err = r.Invoke(context.Background(), 1, runnable.Config{})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, middleware.StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, middleware.StateClosed, cb.State())
}

func TestCircuitBreakerStream(t *testing.T) {
	cb := middleware.NewCircuitBreaker("letters", middleware.WithMaxFailures(1))
	chunks, err := collect(t, middleware.CircuitBreak(cb)(letters()), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b", "c"}, chunks)
	assert.Equal(t, middleware.StateClosed, cb.State())

	failing := runnable.NewGenerator("failing", func(_ context.Context, _ any, emit runnable.Emit) error {
		if err := emit("a"); err != nil {
			return err
		}
		return errBoom
	})
	_, err = collect(t, middleware.CircuitBreak(cb)(failing), nil)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, middleware.StateOpen, cb.State())
}
