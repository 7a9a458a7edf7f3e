package runnable

import (
	"context"
	"strconv"
	"time"

	"github.com/agentstation/runnable/internal/retry"
)

// RetryPolicy controls how a failed call is retried.
type RetryPolicy struct {
	// MaxAttempts counts the first attempt; values below 1 mean one attempt.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter randomizes each delay within its upper half.
	Jitter bool
	// RetryIf selects the errors worth retrying. Nil retries everything but
	// cancellation.
	RetryIf func(err error) bool
}

// DefaultRetryPolicy makes three attempts with jittered exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	p := retry.DefaultPolicy()
	return RetryPolicy{
		MaxAttempts:  p.MaxAttempts,
		InitialDelay: p.InitialDelay,
		MaxDelay:     p.MaxDelay,
		Multiplier:   p.Multiplier,
		Jitter:       p.Jitter,
	}
}

func (p RetryPolicy) internal() retry.Policy {
	return retry.Policy{
		MaxAttempts:  p.MaxAttempts,
		InitialDelay: p.InitialDelay,
		MaxDelay:     p.MaxDelay,
		Multiplier:   p.Multiplier,
		Jitter:       p.Jitter,
		RetryIf:      p.RetryIf,
	}
}

// Retry re-runs its inner node when it fails.
type Retry struct {
	base
	inner  Runnable
	policy RetryPolicy
}

var _ Runnable = (*Retry)(nil)

// WithRetry wraps r so failed calls are retried under policy. Each attempt
// is its own child run; the backoff timer belongs to the call and stops
// when the call's context ends.
func WithRetry(r any, policy RetryPolicy) (*Retry, error) {
	inner, err := Coerce(r)
	if err != nil {
		return nil, &CompositionError{Op: "retry", Reason: "invalid unit", Err: err}
	}
	return &Retry{
		base:   base{name: "retry(" + inner.Name() + ")", inType: inner.InputType(), outType: inner.OutputType()},
		inner:  inner,
		policy: policy,
	}, nil
}

func (r *Retry) Kind() Kind { return KindRetry }

// Policy returns the retry policy.
func (r *Retry) Policy() RetryPolicy { return r.policy }

func (r *Retry) Merger() Merger { return MergerOf(r.inner) }

func (r *Retry) Children() []Child {
	return []Child{{Key: "retried", Node: r.inner}}
}

func attemptConfig(cfg Config, attempt int) Config {
	return cfg.WithTags("retry:attempt:" + strconv.Itoa(attempt))
}

func (r *Retry) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, r, input, cfg, func(ctx context.Context, cfg Config) (any, error) {
		var out any
		err := r.policy.internal().Do(ctx, func(ctx context.Context, attempt int) error {
			v, err := r.inner.Invoke(ctx, input, attemptConfig(cfg, attempt))
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		return out, err
	})
}

func (r *Retry) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, r, inputs, cfg)
}

// Stream retries only while no chunk has been delivered; once the consumer
// has seen output a failure is final.
func (r *Retry) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, r, input, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		policy := r.policy.internal()
		retryIf := policy.RetryIf
		delivered := false
		policy.RetryIf = func(err error) bool {
			if delivered {
				return false
			}
			return retryIf == nil || retryIf(err)
		}
		return policy.Do(ctx, func(ctx context.Context, attempt int) error {
			st, err := r.inner.Stream(ctx, input, attemptConfig(cfg, attempt))
			if err != nil {
				return err
			}
			defer st.Close()
			for {
				chunk, ok, err := st.Next(ctx)
				if err != nil || !ok {
					return err
				}
				delivered = true
				if err := emit(chunk); err != nil {
					return err
				}
			}
		})
	})
}
