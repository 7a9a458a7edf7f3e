package middleware

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/agentstation/runnable"
)

// Retry re-runs failed calls under policy.
func Retry(policy runnable.RetryPolicy) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		rr, err := runnable.WithRetry(r, policy)
		if err != nil {
			return failing(r, err)
		}
		return rr
	}
}

// Fallback tries alternatives in order when the wrapped runnable fails.
func Fallback(alternatives []any, opts ...runnable.FallbackOption) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		f, err := runnable.WithFallbacks(r, alternatives, opts...)
		if err != nil {
			return failing(r, err)
		}
		return f
	}
}

// gate runs acquire before every call to r and release once the call, or
// the stream it opened, has ended.
func gate(r runnable.Runnable, acquire func(ctx context.Context) error, release func()) runnable.Runnable {
	return Wrap(r,
		func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
			if err := acquire(ctx); err != nil {
				return nil, err
			}
			defer release()
			return r.Invoke(ctx, input, cfg)
		},
		func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
			if err := acquire(ctx); err != nil {
				return nil, err
			}
			st, err := r.Stream(ctx, input, cfg)
			if err != nil {
				release()
				return nil, err
			}
			return relay(ctx, st, cfg, nil, func(err error) error {
				release()
				return err
			}), nil
		},
	)
}

// RateLimit allows rps calls per second with bursts of up to burst calls.
// Every runnable wrapped by the returned middleware shares one bucket.
func RateLimit(rps float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(r runnable.Runnable) runnable.Runnable {
		return gate(r, func(ctx context.Context) error {
			if err := limiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limit for %s: %w", r.Name(), err)
			}
			return nil
		}, func() {})
	}
}

// Bulkhead caps the calls in flight at n. Every runnable wrapped by the
// returned middleware shares the cap. Streams hold their slot until they
// end.
func Bulkhead(n int) Middleware {
	sem := semaphore.NewWeighted(int64(max(n, 1)))
	return func(r runnable.Runnable) runnable.Runnable {
		return gate(r, func(ctx context.Context) error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return &runnable.CancellationError{Name: r.Name(), Err: err}
			}
			return nil
		}, func() { sem.Release(1) })
	}
}

// Validation checks inputs before and outputs after a call. Nil validators
// are skipped. Streams are validated chunk by chunk.
func Validation(validateInput, validateOutput func(any) error) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		checkIn := func(input any) error {
			if validateInput == nil {
				return nil
			}
			if err := validateInput(input); err != nil {
				return fmt.Errorf("input validation failed: %w", err)
			}
			return nil
		}
		return Wrap(r,
			func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
				if err := checkIn(input); err != nil {
					return nil, err
				}
				out, err := r.Invoke(ctx, input, cfg)
				if err != nil || validateOutput == nil {
					return out, err
				}
				if err := validateOutput(out); err != nil {
					return nil, fmt.Errorf("output validation failed: %w", err)
				}
				return out, nil
			},
			func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
				if err := checkIn(input); err != nil {
					return nil, err
				}
				st, err := r.Stream(ctx, input, cfg)
				if err != nil || validateOutput == nil {
					return st, err
				}
				return runnable.NewStream(ctx, cfg.StreamBuffer(), func(ctx context.Context, emit runnable.Emit) error {
					defer st.Close()
					for chunk, err := range st.Chunks(ctx) {
						if err != nil {
							return err
						}
						if err := validateOutput(chunk); err != nil {
							return fmt.Errorf("output validation failed: %w", err)
						}
						if err := emit(chunk); err != nil {
							return err
						}
					}
					return nil
				}), nil
			},
		)
	}
}

// Transform rewrites inputs before and outputs after a call. Nil
// transforms are skipped. Streams transform every chunk.
func Transform(transformInput, transformOutput func(any) any) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		in := func(input any) any {
			if transformInput == nil {
				return input
			}
			return transformInput(input)
		}
		return Wrap(r,
			func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
				out, err := r.Invoke(ctx, in(input), cfg)
				if err != nil || transformOutput == nil {
					return out, err
				}
				return transformOutput(out), nil
			},
			func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
				st, err := r.Stream(ctx, in(input), cfg)
				if err != nil || transformOutput == nil {
					return st, err
				}
				return relay(ctx, st, cfg, transformOutput, func(err error) error { return err }), nil
			},
		)
	}
}

// ErrorHandler passes every failure through handler. When handler returns
// nil the failure is swallowed and the call returns nil.
func ErrorHandler(handler func(error) error) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		return Wrap(r,
			func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
				out, err := r.Invoke(ctx, input, cfg)
				if err != nil {
					if handled := handler(err); handled != nil {
						return nil, handled
					}
					return nil, nil
				}
				return out, nil
			},
			func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
				st, err := r.Stream(ctx, input, cfg)
				if err != nil {
					if handled := handler(err); handled != nil {
						return nil, handled
					}
					return runnable.FromSlice(), nil
				}
				return relay(ctx, st, cfg, nil, func(err error) error {
					if err == nil {
						return nil
					}
					return handler(err)
				}), nil
			},
		)
	}
}
