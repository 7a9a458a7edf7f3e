package runnable

import (
	"context"
	"reflect"

	"golang.org/x/sync/errgroup"
)

var sliceType = reflect.TypeFor[[]any]()

// Each applies one node to every element of a slice input.
type Each struct {
	base
	inner Runnable
}

var _ Runnable = (*Each)(nil)

// NewEach maps r over slice inputs.
func NewEach(r any) (*Each, error) {
	inner, err := Coerce(r)
	if err != nil {
		return nil, &CompositionError{Op: "each", Reason: "invalid unit", Err: err}
	}
	return &Each{
		base:  base{name: "each(" + inner.Name() + ")", outType: sliceType},
		inner: inner,
	}, nil
}

func (e *Each) Kind() Kind { return KindEach }

func (e *Each) Children() []Child {
	return []Child{{Key: "item", Node: e.inner}}
}

// Invoke batches the inner node over the elements, keeping their order. A
// failed element fails the call: BatchReturnErrors falls back to
// BatchWaitAll, while BatchFailFast is kept.
func (e *Each) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, e, input, cfg, func(ctx context.Context, cfg Config) (any, error) {
		items, err := toSlice(e.name, input)
		if err != nil {
			return nil, err
		}
		if cfg.BatchPolicy() == BatchReturnErrors {
			cfg = cfg.Without(KeyBatchPolicy)
		}
		return e.inner.Batch(ctx, items, cfg)
	})
}

func (e *Each) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, e, inputs, cfg)
}

// Stream yields one chunk []any{out} per element, in input order whatever
// the completion order.
func (e *Each) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, e, input, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		items, err := toSlice(e.name, input)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return emit([]any{})
		}

		type slot struct {
			out  any
			err  error
			done chan struct{}
		}
		slots := make([]slot, len(items))
		for i := range slots {
			slots[i].done = make(chan struct{})
		}

		runCtx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(runCtx)
		g.SetLimit(cfg.MaxConcurrency())
		spawned := make(chan struct{})
		go func() {
			defer close(spawned)
			for i, item := range items {
				if gctx.Err() != nil {
					return
				}
				g.Go(func() error {
					defer close(slots[i].done)
					slots[i].out, slots[i].err = e.inner.Invoke(gctx, item, cfg)
					return slots[i].err
				})
			}
		}()
		// Items still running when the stream ends are cancelled and
		// waited for.
		defer func() {
			cancel()
			<-spawned
			_ = g.Wait()
		}()

		for i := range slots {
			select {
			case <-slots[i].done:
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := slots[i].err; err != nil {
				return annotate(itemPos(i), e.inner.Name(), err)
			}
			if err := emit([]any{slots[i].out}); err != nil {
				return err
			}
		}
		return nil
	})
}

// toSlice converts common slice inputs to []any.
func toSlice(name string, input any) ([]any, error) {
	switch in := input.(type) {
	case []any:
		return in, nil
	case nil:
		return []any{}, nil
	case []string:
		return convertSlice(in), nil
	case []int:
		return convertSlice(in), nil
	case []float64:
		return convertSlice(in), nil
	case []bool:
		return convertSlice(in), nil
	case []map[string]any:
		return convertSlice(in), nil
	}
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, typeMismatch(name, "a slice", reflect.TypeOf(input))
	}
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Index(i).Interface()
	}
	return out, nil
}

func convertSlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
