package runnable

import (
	"context"

	"github.com/agentstation/runnable/internal/exec"
)

// Future is the pending result of an asynchronous call.
type Future struct {
	done chan struct{}
	out  any
	err  error
}

// Go runs fn on its own goroutine and returns its future result.
func Go(fn func() (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.out, f.err = fn()
	}()
	return f
}

// Resolved returns a future that is already complete.
func Resolved(out any, err error) *Future {
	f := &Future{done: make(chan struct{}), out: out, err: err}
	close(f.done)
	return f
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Await blocks until the result is available or ctx ends.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.out, f.err
	case <-ctx.Done():
		return nil, &CancellationError{Name: "future", Err: ctx.Err()}
	}
}

// InvokeAsync starts r.Invoke in async mode and returns immediately. Leaves
// with an async function use it; others run their sync path on the
// goroutine backing the future.
func InvokeAsync(ctx context.Context, r Runnable, input any, cfg Config) *Future {
	ctx = exec.WithAsync(ctx)
	if a, ok := r.(AsyncInvoker); ok {
		return a.InvokeAsync(ctx, input, cfg)
	}
	return Go(func() (any, error) {
		return r.Invoke(ctx, input, cfg)
	})
}

// BatchAsync starts r.Batch in async mode. The future resolves to []any.
func BatchAsync(ctx context.Context, r Runnable, inputs []any, cfg Config) *Future {
	ctx = exec.WithAsync(ctx)
	return Go(func() (any, error) {
		out, err := r.Batch(ctx, inputs, cfg)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// StreamAsync starts r.Stream in async mode. Streams never block the caller
// beyond opening the run.
func StreamAsync(ctx context.Context, r Runnable, input any, cfg Config) (*Stream, error) {
	return r.Stream(exec.WithAsync(ctx), input, cfg)
}
