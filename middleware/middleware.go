// Package middleware wraps runnables with cross-cutting behavior: logging,
// timing, metrics, rate limiting, circuit breaking and more.
//
// A wrapped runnable keeps the name, kind, types and children of the one it
// wraps, so it composes and describes like the original.
package middleware

import (
	"context"

	"github.com/agentstation/runnable"
)

// Middleware modifies runnable behavior.
type Middleware func(runnable.Runnable) runnable.Runnable

// InvokeFunc has the shape of Runnable.Invoke.
type InvokeFunc func(ctx context.Context, input any, cfg runnable.Config) (any, error)

// StreamFunc has the shape of Runnable.Stream.
type StreamFunc func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error)

// wrapped intercepts the calls to an inner runnable.
type wrapped struct {
	runnable.Runnable
	invoke InvokeFunc
	stream StreamFunc
}

// Wrap returns r with its Invoke and Stream replaced. A nil function
// forwards to r. Batch invokes the replacement once per input. Failures of
// the replacements are classified with runnable.WrapError.
func Wrap(r runnable.Runnable, invoke InvokeFunc, stream StreamFunc) runnable.Runnable {
	return &wrapped{Runnable: r, invoke: invoke, stream: stream}
}

func (w *wrapped) Invoke(ctx context.Context, input any, cfg runnable.Config) (any, error) {
	if w.invoke != nil {
		out, err := w.invoke(ctx, input, cfg)
		if err != nil {
			return nil, runnable.WrapError(w.Name(), err)
		}
		return out, nil
	}
	return w.Runnable.Invoke(ctx, input, cfg)
}

func (w *wrapped) Batch(ctx context.Context, inputs []any, cfg runnable.Config) ([]any, error) {
	if w.invoke != nil {
		return runnable.InvokeEach(ctx, w, inputs, cfg)
	}
	return w.Runnable.Batch(ctx, inputs, cfg)
}

func (w *wrapped) Stream(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
	if w.stream == nil {
		return w.Runnable.Stream(ctx, input, cfg)
	}
	st, err := w.stream(ctx, input, cfg)
	if err != nil {
		return nil, runnable.WrapError(w.Name(), err)
	}
	return relay(ctx, st, cfg, nil, func(err error) error {
		return runnable.WrapError(w.Name(), err)
	}), nil
}

// Merger forwards the wrapped runnable's merger.
func (w *wrapped) Merger() runnable.Merger { return runnable.MergerOf(w.Runnable) }

// Unwrap returns the wrapped runnable.
func (w *wrapped) Unwrap() runnable.Runnable { return w.Runnable }

func (w *wrapped) Children() []runnable.Child {
	if p, ok := w.Runnable.(runnable.Parent); ok {
		return p.Children()
	}
	return nil
}

// failing returns r with every call failing with err.
func failing(r runnable.Runnable, err error) runnable.Runnable {
	return Wrap(r,
		func(context.Context, any, runnable.Config) (any, error) { return nil, err },
		func(context.Context, any, runnable.Config) (*runnable.Stream, error) { return nil, err },
	)
}

// relay forwards the chunks of st through a new stream. mapChunk, when set,
// rewrites each chunk. finish sees how the stream ended and returns the
// error it ends with.
func relay(ctx context.Context, st *runnable.Stream, cfg runnable.Config,
	mapChunk func(any) any, finish func(error) error) *runnable.Stream {
	return runnable.NewStream(ctx, cfg.StreamBuffer(), func(ctx context.Context, emit runnable.Emit) error {
		defer st.Close()
		for chunk, err := range st.Chunks(ctx) {
			if err != nil {
				return finish(err)
			}
			if mapChunk != nil {
				chunk = mapChunk(chunk)
			}
			if err := emit(chunk); err != nil {
				return finish(err)
			}
		}
		return finish(nil)
	})
}

// Chain combines multiple middlewares into a single middleware.
// The first middleware is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		for i := len(middlewares) - 1; i >= 0; i-- {
			r = middlewares[i](r)
		}
		return r
	}
}

// Apply applies middleware to a runnable. The last middleware is the
// outermost.
func Apply(r runnable.Runnable, middlewares ...Middleware) runnable.Runnable {
	for _, mw := range middlewares {
		r = mw(r)
	}
	return r
}
