package runnable

import (
	"context"
)

// TransformFunc consumes a chunk stream and emits a chunk stream.
type TransformFunc func(ctx context.Context, in *Stream, emit Emit) error

// Generator is a streaming leaf backed by a producer of lazy values.
//
// Invoke combines the chunks with the generator's merger, which defaults to
// LastValue: only the final chunk survives and every earlier chunk is
// dropped. Pass WithMerger(Add) to concatenate text or merge partial maps.
type Generator struct {
	base
	produce   GeneratorFunc
	transform TransformFunc
	merge     Merger
}

var _ Runnable = (*Generator)(nil)

// NewGenerator adapts produce, which is called with the input of each call.
func NewGenerator(name string, produce GeneratorFunc, opts ...Option) *Generator {
	return newGenerator(name, produce, nil, opts)
}

// NewTransformGenerator adapts fn, which reads the chunks of its input
// stream. Invoke and Stream feed it a stream holding the single input.
func NewTransformGenerator(name string, fn TransformFunc, opts ...Option) *Generator {
	return newGenerator(name, nil, fn, opts)
}

func newGenerator(name string, produce GeneratorFunc, transform TransformFunc, opts []Option) *Generator {
	o := applyOptions(opts)
	g := &Generator{
		base:      base{name: name, inType: o.inType, outType: o.outType},
		produce:   produce,
		transform: transform,
		merge:     o.merge,
	}
	if g.merge == nil {
		g.merge = LastValue
	}
	return g
}

func (g *Generator) Kind() Kind { return KindGenerator }

// Merger returns how Invoke combines the chunks.
func (g *Generator) Merger() Merger { return g.merge }

func (g *Generator) generate(ctx context.Context, input any, emit Emit) error {
	if g.transform != nil {
		return g.transform(ctx, FromSlice(input), emit)
	}
	return g.produce(ctx, input, emit)
}

// Invoke drains the generator and returns the merged chunks.
func (g *Generator) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, g, input, cfg, func(ctx context.Context, _ Config) (any, error) {
		var acc any
		err := g.generate(ctx, input, func(chunk any) error {
			var err error
			if acc, err = g.merge(acc, chunk); err != nil {
				return err
			}
			return ctx.Err()
		})
		if err != nil {
			return nil, err
		}
		return acc, nil
	})
}

func (g *Generator) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, g, inputs, cfg)
}

// Stream forwards each value as it is produced.
func (g *Generator) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, g, input, cfg, func(ctx context.Context, _ Config, emit Emit) error {
		return g.generate(ctx, input, emit)
	})
}

// Transform consumes in chunk by chunk. A generator built with NewGenerator
// has to collect in first and is not fused into streaming sequences.
func (g *Generator) Transform(ctx context.Context, in *Stream, cfg Config) (*Stream, error) {
	if g.transform == nil {
		v, err := Collect(ctx, in, Add)
		if err != nil {
			return nil, err
		}
		return g.Stream(ctx, v, cfg)
	}
	return streamRun(ctx, g, nil, cfg, func(ctx context.Context, _ Config, emit Emit) error {
		defer in.Close()
		return g.transform(ctx, in, emit)
	})
}

func (g *Generator) canTransform() bool { return g.transform != nil }
