package runnable

import (
	"context"
	"errors"
	"strconv"
)

// Fallbacks tries alternatives in order until one succeeds.
type Fallbacks struct {
	base
	primary  Runnable
	alts     []Runnable
	handleIf func(err error) bool
}

var _ Runnable = (*Fallbacks)(nil)

// FallbackOption configures WithFallbacks.
type FallbackOption func(*Fallbacks)

// HandleIf restricts fallbacks to errors matching fn. Other errors fail the
// call straight away.
func HandleIf(fn func(err error) bool) FallbackOption {
	return func(f *Fallbacks) { f.handleIf = fn }
}

// WithFallbacks returns r backed by alts. When every candidate fails the
// error joins all of their failures in order.
func WithFallbacks(r any, alts []any, opts ...FallbackOption) (*Fallbacks, error) {
	primary, err := Coerce(r)
	if err != nil {
		return nil, &CompositionError{Op: "fallbacks", Reason: "invalid primary", Err: err}
	}
	if len(alts) == 0 {
		return nil, compositionErr("fallbacks", "at least one fallback is required")
	}
	f := &Fallbacks{primary: primary}
	for i, a := range alts {
		alt, err := Coerce(a)
		if err != nil {
			return nil, &CompositionError{Op: "fallbacks", Reason: "fallback " + strconv.Itoa(i), Err: err}
		}
		f.alts = append(f.alts, alt)
	}
	for _, opt := range opts {
		opt(f)
	}
	f.base = base{
		name:    "fallbacks(" + primary.Name() + ")",
		inType:  primary.InputType(),
		outType: primary.OutputType(),
	}
	return f, nil
}

func (f *Fallbacks) Kind() Kind { return KindFallbacks }

// Merger is the primary's merger. Alternatives are expected to stream the
// same shape of chunks.
func (f *Fallbacks) Merger() Merger { return MergerOf(f.primary) }

func (f *Fallbacks) candidates() []Runnable {
	return append([]Runnable{f.primary}, f.alts...)
}

func (f *Fallbacks) Children() []Child {
	out := make([]Child, 0, len(f.alts)+1)
	out = append(out, Child{Key: "primary", Node: f.primary})
	for i, alt := range f.alts {
		out = append(out, Child{Key: "fallback:" + strconv.Itoa(i), Node: alt})
	}
	return out
}

// handles reports whether err should move on to the next candidate.
func (f *Fallbacks) handles(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrCancelled) {
		return false
	}
	return f.handleIf == nil || f.handleIf(err)
}

func (f *Fallbacks) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, f, input, cfg, func(ctx context.Context, cfg Config) (any, error) {
		var errs []error
		for _, c := range f.candidates() {
			out, err := c.Invoke(ctx, input, cfg)
			if err == nil {
				return out, nil
			}
			errs = append(errs, err)
			if !f.handles(ctx, err) {
				break
			}
		}
		return nil, f.joined(errs)
	})
}

func (f *Fallbacks) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, f, inputs, cfg)
}

// Stream moves to the next candidate only if the failing one has not
// delivered a chunk yet.
func (f *Fallbacks) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, f, input, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		var errs []error
		for _, c := range f.candidates() {
			delivered, err := f.streamOne(ctx, c, input, cfg, emit)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
			if delivered || !f.handles(ctx, err) {
				break
			}
		}
		return f.joined(errs)
	})
}

// joined reports the failures of every candidate tried. A single failure
// is returned as is.
func (f *Fallbacks) joined(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return &ExecutionError{Name: f.name, Err: errors.Join(errs...)}
}

func (f *Fallbacks) streamOne(ctx context.Context, c Runnable, input any, cfg Config, emit Emit) (bool, error) {
	st, err := c.Stream(ctx, input, cfg)
	if err != nil {
		return false, err
	}
	defer st.Close()
	delivered := false
	for {
		chunk, ok, err := st.Next(ctx)
		if err != nil || !ok {
			return delivered, err
		}
		delivered = true
		if err := emit(chunk); err != nil {
			return delivered, err
		}
	}
}
