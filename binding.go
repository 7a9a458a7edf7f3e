package runnable

import (
	"context"
	"reflect"
)

// Args are fixed arguments a Binding merges into every call.
type Args map[string]any

// ConfigTransform rewrites the config of each call to a bound node.
type ConfigTransform func(ctx context.Context, cfg Config) Config

// Binding wraps one node with fixed arguments, a config overlay and config
// transforms. It opens no run of its own: callers observe the wrapped node.
type Binding struct {
	inner      Runnable
	args       Args
	overlay    Config
	transforms []ConfigTransform
}

var _ Runnable = (*Binding)(nil)

// Bind fixes args for every call to r. Map inputs receive the arguments as
// defaults beneath their own keys, and config-aware units read them through
// Config.Arguments.
func Bind(r any, args Args) (*Binding, error) {
	return bind(r, args, Config{}, nil)
}

// WithConfig returns r with overlay merged into the config of every call.
// The overlay wins over the caller's config.
func WithConfig(r any, overlay Config) (*Binding, error) {
	return bind(r, nil, overlay, nil)
}

// WithConfigFunc returns r with fn applied to the config of every call.
func WithConfigFunc(r any, fn ConfigTransform) (*Binding, error) {
	if fn == nil {
		return nil, compositionErr("bind", "nil config transform")
	}
	return bind(r, nil, Config{}, []ConfigTransform{fn})
}

// bind wraps r. Binding a Binding composes the overlays instead of nesting:
// arguments and config merge with the later binding winning, transforms
// run in the order they were bound.
func bind(r any, args Args, overlay Config, transforms []ConfigTransform) (*Binding, error) {
	inner, err := Coerce(r)
	if err != nil {
		return nil, &CompositionError{Op: "bind", Reason: "invalid unit", Err: err}
	}
	b := &Binding{inner: inner}
	if prev, ok := inner.(*Binding); ok {
		b.inner = prev.inner
		b.args = prev.args
		b.overlay = prev.overlay
		b.transforms = append(b.transforms, prev.transforms...)
	}
	if len(args) > 0 {
		b.args = Args(mergeMaps(b.args, args))
	}
	b.overlay = b.overlay.Merge(overlay)
	b.transforms = append(b.transforms, transforms...)
	return b, nil
}

// Bind returns b with more arguments fixed.
func (b *Binding) Bind(args Args) *Binding {
	out, _ := bind(b, args, Config{}, nil)
	return out
}

// WithConfig returns b with overlay merged over its current overlay.
func (b *Binding) WithConfig(overlay Config) *Binding {
	out, _ := bind(b, nil, overlay, nil)
	return out
}

// Unwrap returns the bound node.
func (b *Binding) Unwrap() Runnable { return b.inner }

// Args returns a copy of the bound arguments.
func (b *Binding) Args() Args { return Args(mergeMaps(nil, b.args)) }

// Overlay returns the config overlay.
func (b *Binding) Overlay() Config { return b.overlay }

func (b *Binding) Name() string             { return b.inner.Name() }
func (b *Binding) Kind() Kind               { return KindBinding }
func (b *Binding) InputType() reflect.Type  { return b.inner.InputType() }
func (b *Binding) OutputType() reflect.Type { return b.inner.OutputType() }

func (b *Binding) Merger() Merger { return MergerOf(b.inner) }

func (b *Binding) Children() []Child {
	return []Child{{Key: "bound", Node: b.inner}}
}

// EffectiveConfig returns the config the bound node is called with when the
// caller passes cfg.
func (b *Binding) EffectiveConfig(ctx context.Context, cfg Config) Config {
	cfg = cfg.Merge(b.overlay)
	if len(b.args) > 0 {
		cfg = cfg.Merge(NewConfig(KeyArguments, map[string]any(b.args)))
	}
	for _, fn := range b.transforms {
		cfg = fn(ctx, cfg)
	}
	return cfg
}

// input merges the bound arguments beneath a map input. Other inputs pass
// through untouched; a nil input becomes the arguments themselves.
func (b *Binding) input(input any) any {
	if len(b.args) == 0 {
		return input
	}
	switch in := input.(type) {
	case nil:
		return mergeMaps(nil, b.args)
	case map[string]any:
		return mergeMaps(b.args, in)
	default:
		return input
	}
}

func (b *Binding) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return b.inner.Invoke(ctx, b.input(input), b.EffectiveConfig(ctx, cfg))
}

func (b *Binding) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	bound := make([]any, len(inputs))
	for i, in := range inputs {
		bound[i] = b.input(in)
	}
	return b.inner.Batch(ctx, bound, b.EffectiveConfig(ctx, cfg))
}

func (b *Binding) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return b.inner.Stream(ctx, b.input(input), b.EffectiveConfig(ctx, cfg))
}

// Transform forwards to the bound node when it is a Transformer, otherwise
// it collects the input stream and streams the result.
func (b *Binding) Transform(ctx context.Context, in *Stream, cfg Config) (*Stream, error) {
	if t, ok := asTransformer(b.inner); ok {
		return t.Transform(ctx, in, b.EffectiveConfig(ctx, cfg))
	}
	v, err := Collect(ctx, in, Add)
	if err != nil {
		return nil, err
	}
	return b.Stream(ctx, v, cfg)
}

func (b *Binding) canTransform() bool { return canTransform(b.inner) }

// InvokeAsync forwards to the bound node's native async path, if any.
func (b *Binding) InvokeAsync(ctx context.Context, input any, cfg Config) *Future {
	return InvokeAsync(ctx, b.inner, b.input(input), b.EffectiveConfig(ctx, cfg))
}
