package runnable

import (
	"context"
	"fmt"
	"iter"
	"reflect"
)

// Func is a plain unary unit of work.
type Func func(ctx context.Context, input any) (any, error)

// ConfigFunc is a unit of work that receives the merged config of its call.
type ConfigFunc func(ctx context.Context, input any, cfg Config) (any, error)

// GeneratorFunc produces a lazy sequence of chunks through emit.
type GeneratorFunc func(ctx context.Context, input any, emit Emit) error

// AsyncFunc starts a unit of work and returns its pending result.
type AsyncFunc func(ctx context.Context, input any, cfg Config) *Future

// LambdaPair supplies a sync and an async implementation of the same unit.
// Either may be nil; calling the mode whose function is missing fails with
// an UnsupportedModeError.
type LambdaPair struct {
	Sync  any
	Async AsyncFunc
}

// Option configures a leaf node.
type Option func(*leafOptions)

type leafOptions struct {
	merge   Merger
	inType  reflect.Type
	outType reflect.Type
}

// WithMerger sets how a generator's chunks combine into its Invoke result.
func WithMerger(m Merger) Option {
	return func(o *leafOptions) { o.merge = m }
}

// WithTypes declares the input and output types of a leaf so Pipe can check
// adjacent steps. Nil leaves a side unknown.
func WithTypes(in, out reflect.Type) Option {
	return func(o *leafOptions) {
		o.inType = in
		o.outType = out
	}
}

func applyOptions(opts []Option) leafOptions {
	var o leafOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Lambda adapts functions into a leaf node. A lambda built from a generator
// streams natively and its Invoke combines every chunk; any other lambda
// streams its single result as one chunk.
type Lambda struct {
	base
	fn    ConfigFunc
	gen   func(ctx context.Context, input any, cfg Config, emit Emit) error
	async AsyncFunc
	merge Merger
}

var _ Runnable = (*Lambda)(nil)

// NewLambda wraps fn, which may be any function shape Coerce accepts, a
// LambdaPair, or one of Func, ConfigFunc, GeneratorFunc and AsyncFunc.
func NewLambda(name string, fn any, opts ...Option) (*Lambda, error) {
	o := applyOptions(opts)
	l := &Lambda{
		base:  base{name: name, inType: o.inType, outType: o.outType},
		merge: o.merge,
	}
	if l.merge == nil {
		l.merge = Add
	}
	if !l.setFunc(fn) {
		return nil, compositionErr("lambda", "%s: unsupported function type %T", name, fn)
	}
	if l.fn == nil && l.gen == nil && l.async == nil {
		return nil, compositionErr("lambda", "%s: no function given", name)
	}
	return l, nil
}

func (l *Lambda) setFunc(fn any) bool {
	switch f := fn.(type) {
	case LambdaPair:
		if f.Sync != nil && !l.setFunc(f.Sync) {
			return false
		}
		l.async = f.Async
	case AsyncFunc:
		l.async = f
	case func(context.Context, any, Config) *Future:
		l.async = f
	case ConfigFunc:
		l.fn = f
	case func(context.Context, any, Config) (any, error):
		l.fn = f
	case Func:
		l.fn = func(ctx context.Context, input any, _ Config) (any, error) { return f(ctx, input) }
	case func(context.Context, any) (any, error):
		l.fn = func(ctx context.Context, input any, _ Config) (any, error) { return f(ctx, input) }
	case func(any) (any, error):
		l.fn = func(_ context.Context, input any, _ Config) (any, error) { return f(input) }
	case func(any) any:
		l.fn = func(_ context.Context, input any, _ Config) (any, error) { return f(input), nil }
	case GeneratorFunc:
		l.gen = func(ctx context.Context, input any, _ Config, emit Emit) error { return f(ctx, input, emit) }
	case func(context.Context, any, Emit) error:
		l.gen = func(ctx context.Context, input any, _ Config, emit Emit) error { return f(ctx, input, emit) }
	case func(context.Context, any) iter.Seq2[any, error]:
		l.gen = func(ctx context.Context, input any, _ Config, emit Emit) error {
			for chunk, err := range f(ctx, input) {
				if err != nil {
					return err
				}
				if err := emit(chunk); err != nil {
					return err
				}
			}
			return nil
		}
	case func(any) iter.Seq[any]:
		l.gen = func(_ context.Context, input any, _ Config, emit Emit) error {
			for chunk := range f(input) {
				if err := emit(chunk); err != nil {
					return err
				}
			}
			return nil
		}
	default:
		return false
	}
	return true
}

// Fn wraps a typed function. The recorded types let Pipe reject adjacent
// steps that cannot fit together.
func Fn[In, Out any](name string, fn func(ctx context.Context, input In) (Out, error), opts ...Option) *Lambda {
	in, out := reflect.TypeFor[In](), reflect.TypeFor[Out]()
	o := applyOptions(opts)
	l := &Lambda{
		base:  base{name: name, inType: in, outType: out},
		merge: Add,
		fn: func(ctx context.Context, input any, _ Config) (any, error) {
			v, err := assertInput[In](name, input)
			if err != nil {
				return nil, err
			}
			return fn(ctx, v)
		},
	}
	if o.merge != nil {
		l.merge = o.merge
	}
	return l
}

// Gen wraps a typed generator. Invoke combines the chunks with Add unless
// WithMerger says otherwise.
func Gen[In, Out any](name string, fn func(ctx context.Context, input In, yield func(Out) error) error, opts ...Option) *Lambda {
	in, out := reflect.TypeFor[In](), reflect.TypeFor[Out]()
	o := applyOptions(opts)
	l := &Lambda{
		base:  base{name: name, inType: in, outType: out},
		merge: Add,
		gen: func(ctx context.Context, input any, _ Config, emit Emit) error {
			v, err := assertInput[In](name, input)
			if err != nil {
				return err
			}
			return fn(ctx, v, func(chunk Out) error { return emit(chunk) })
		},
	}
	if o.merge != nil {
		l.merge = o.merge
	}
	return l
}

func assertInput[In any](name string, input any) (In, error) {
	var zero In
	if input == nil {
		return zero, nil
	}
	v, ok := input.(In)
	if !ok {
		return zero, typeMismatch(name, reflect.TypeFor[In](), reflect.TypeOf(input))
	}
	return v, nil
}

func (l *Lambda) Kind() Kind { return KindLambda }

// Merger returns how Invoke combines the chunks of a generator lambda.
func (l *Lambda) Merger() Merger { return l.merge }

// IsGenerator reports whether the lambda streams natively.
func (l *Lambda) IsGenerator() bool { return l.gen != nil }

func (l *Lambda) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, l, input, cfg, func(ctx context.Context, cfg Config) (any, error) {
		if err := checkInput(l, input); err != nil {
			return nil, err
		}
		out, err := l.call(ctx, input, cfg)
		if err != nil {
			return nil, err
		}
		if next, ok := out.(Runnable); ok {
			cfg, err = descend(l.name, cfg)
			if err != nil {
				return nil, err
			}
			return next.Invoke(ctx, input, cfg)
		}
		return out, nil
	})
}

func (l *Lambda) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, l, inputs, cfg)
}

func (l *Lambda) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, l, input, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		if err := checkInput(l, input); err != nil {
			return err
		}
		if l.gen != nil {
			return l.gen(ctx, input, cfg, emit)
		}
		out, err := l.call(ctx, input, cfg)
		if err != nil {
			return err
		}
		if next, ok := out.(Runnable); ok {
			cfg, err = descend(l.name, cfg)
			if err != nil {
				return err
			}
			st, err := next.Stream(ctx, input, cfg)
			if err != nil {
				return err
			}
			return pipeStream(ctx, st, emit)
		}
		return emit(out)
	})
}

// call runs the function matching the current mode. Generators are folded
// with the lambda's merger without a goroutine.
func (l *Lambda) call(ctx context.Context, input any, cfg Config) (any, error) {
	switch {
	case l.gen != nil:
		var acc any
		err := l.gen(ctx, input, cfg, func(chunk any) error {
			var err error
			acc, err = l.merge(acc, chunk)
			if err != nil {
				return err
			}
			return ctx.Err()
		})
		return acc, err
	case isAsync(ctx) && l.async != nil:
		return l.async(ctx, input, cfg).Await(ctx)
	case l.fn != nil:
		return l.fn(ctx, input, cfg)
	default:
		return nil, &UnsupportedModeError{Name: l.name, Mode: ModeSync}
	}
}

// descend lowers the recursion limit for a runnable returned by a lambda.
func descend(name string, cfg Config) (Config, error) {
	limit := cfg.RecursionLimit()
	if limit <= 0 {
		return cfg, fmt.Errorf("%w: %s", ErrRecursionLimit, name)
	}
	return cfg.WithRecursionLimit(limit - 1), nil
}
