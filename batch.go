package runnable

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchPolicy selects how a batch reacts when inputs fail.
type BatchPolicy int

const (
	// BatchWaitAll runs every input to completion and then fails with the
	// error of the lowest failing index.
	BatchWaitAll BatchPolicy = iota

	// BatchFailFast cancels outstanding inputs on the first failure.
	BatchFailFast

	// BatchReturnErrors never fails as a whole; each failed slot holds its
	// error value.
	BatchReturnErrors
)

func (p BatchPolicy) String() string {
	switch p {
	case BatchWaitAll:
		return "wait_all"
	case BatchFailFast:
		return "fail_fast"
	case BatchReturnErrors:
		return "return_errors"
	default:
		return "unknown"
	}
}

// ParseBatchPolicy maps a policy name back to its value.
func ParseBatchPolicy(s string) (BatchPolicy, bool) {
	for _, p := range []BatchPolicy{BatchWaitAll, BatchFailFast, BatchReturnErrors} {
		if p.String() == s {
			return p, true
		}
	}
	return BatchWaitAll, false
}

// runBatch calls call for every index in [0, n) with at most
// cfg.MaxConcurrency calls outstanding. Results keep index order whatever
// the completion order.
func runBatch(ctx context.Context, name string, n int, cfg Config,
	call func(ctx context.Context, i int) (any, error)) ([]any, error) {
	out := make([]any, n)
	if n == 0 {
		return out, nil
	}

	policy := cfg.BatchPolicy()
	errs := make([]error, n)

	g, gctx := errgroup.WithContext(ctx)
	if policy != BatchFailFast {
		// Siblings keep running; only the caller's context cancels them.
		g, gctx = new(errgroup.Group), ctx
	}
	g.SetLimit(cfg.MaxConcurrency())

	for i := range n {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = &CancellationError{Name: name, Err: err}
				return errs[i]
			}
			v, err := call(gctx, i)
			if err != nil {
				errs[i] = err
				if policy == BatchFailFast {
					return annotate(itemPos(i), name, err)
				}
				return nil
			}
			out[i] = v
			return nil
		})
	}
	first := g.Wait()

	switch policy {
	case BatchFailFast:
		if first != nil {
			return nil, first
		}
	case BatchReturnErrors:
		for i, err := range errs {
			if err != nil {
				out[i] = err
			}
		}
	default:
		for i, err := range errs {
			if err != nil {
				return nil, annotate(itemPos(i), name, err)
			}
		}
	}
	return out, nil
}
