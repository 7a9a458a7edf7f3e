package runnable

import (
	"context"
	"fmt"
	"reflect"
)

// Constant always yields the same value, whatever its input.
type Constant struct {
	base
	value any
}

var _ Runnable = (*Constant)(nil)

// NewConstant returns a leaf yielding v.
func NewConstant(v any) *Constant {
	return &Constant{
		base:  base{name: fmt.Sprintf("constant(%v)", v), outType: reflect.TypeOf(v)},
		value: v,
	}
}

// Value returns the constant.
func (c *Constant) Value() any { return c.value }

func (c *Constant) Kind() Kind { return KindLeaf }

func (c *Constant) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, c, input, cfg, func(context.Context, Config) (any, error) {
		return c.value, nil
	})
}

func (c *Constant) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, c, inputs, cfg)
}

func (c *Constant) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, c, input, cfg, func(_ context.Context, _ Config, emit Emit) error {
		return emit(c.value)
	})
}

// Passthrough yields its input unchanged.
type Passthrough struct {
	base
}

var _ Runnable = (*Passthrough)(nil)
var _ Transformer = (*Passthrough)(nil)

// NewPassthrough returns the identity leaf.
func NewPassthrough() *Passthrough {
	return &Passthrough{base: base{name: "passthrough"}}
}

func (p *Passthrough) Kind() Kind { return KindLeaf }

func (p *Passthrough) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, p, input, cfg, func(context.Context, Config) (any, error) {
		return input, nil
	})
}

func (p *Passthrough) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, p, inputs, cfg)
}

func (p *Passthrough) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, p, input, cfg, func(_ context.Context, _ Config, emit Emit) error {
		return emit(input)
	})
}

// Transform forwards every chunk.
func (p *Passthrough) Transform(ctx context.Context, in *Stream, cfg Config) (*Stream, error) {
	return streamRun(ctx, p, nil, cfg, func(ctx context.Context, _ Config, emit Emit) error {
		return pipeStream(ctx, in, emit)
	})
}
