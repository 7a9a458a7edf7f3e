package runnable

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// Sequence feeds the output of each step into the next.
type Sequence struct {
	base
	steps []Runnable
}

var _ Runnable = (*Sequence)(nil)

// Pipe composes units into a Sequence. Each unit is coerced with Coerce and
// nested sequences are flattened, so Pipe(Pipe(a, b), c) and
// Pipe(a, Pipe(b, c)) have the same steps. At least two steps are required.
// Adjacent steps whose declared types cannot fit fail with a
// CompositionError.
func Pipe(units ...any) (*Sequence, error) {
	var steps []Runnable
	for i, u := range units {
		r, err := Coerce(u)
		if err != nil {
			return nil, &CompositionError{Op: "pipe", Reason: "step " + strconv.Itoa(i), Err: err}
		}
		if seq, ok := r.(*Sequence); ok {
			steps = append(steps, seq.steps...)
			continue
		}
		steps = append(steps, r)
	}
	if len(steps) < 2 {
		return nil, compositionErr("pipe", "a sequence needs at least 2 steps, got %d", len(steps))
	}
	for i := 1; i < len(steps); i++ {
		prev, next := steps[i-1], steps[i]
		if !isTypeCompatible(prev.OutputType(), next.InputType()) {
			return nil, &CompositionError{
				Op: "pipe",
				Reason: "step " + strconv.Itoa(i-1) + " (" + prev.Name() + ") outputs " + prev.OutputType().String() +
					" but step " + strconv.Itoa(i) + " (" + next.Name() + ") expects " + next.InputType().String(),
				Err: ErrTypeMismatch,
			}
		}
	}

	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name()
	}
	return &Sequence{
		base: base{
			name:    strings.Join(names, " | "),
			inType:  steps[0].InputType(),
			outType: steps[len(steps)-1].OutputType(),
		},
		steps: steps,
	}, nil
}

// MustPipe is like Pipe but panics on error. It suits pipelines built at
// package initialization.
func MustPipe(units ...any) *Sequence {
	s, err := Pipe(units...)
	if err != nil {
		panic(err)
	}
	return s
}

// Then composes a and b into a Sequence.
func Then(a, b any) (*Sequence, error) { return Pipe(a, b) }

func (s *Sequence) Kind() Kind { return KindSequence }

// Steps returns the flattened steps.
func (s *Sequence) Steps() []Runnable {
	out := make([]Runnable, len(s.steps))
	copy(out, s.steps)
	return out
}

func (s *Sequence) Children() []Child {
	out := make([]Child, len(s.steps))
	for i, step := range s.steps {
		out[i] = Child{Key: stepPos(i), Node: step}
	}
	return out
}

// Merger is the merger of the last step, which is the one Stream streams.
func (s *Sequence) Merger() Merger { return MergerOf(s.steps[len(s.steps)-1]) }

func stepConfig(cfg Config, i int) Config {
	return cfg.WithTags("seq:" + stepPos(i))
}

func (s *Sequence) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, s, input, cfg, func(ctx context.Context, cfg Config) (any, error) {
		v := input
		for i, step := range s.steps {
			out, err := step.Invoke(ctx, v, stepConfig(cfg, i))
			if err != nil {
				return nil, annotate(stepPos(i), step.Name(), err)
			}
			v = out
		}
		return v, nil
	})
}

func (s *Sequence) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, s, inputs, cfg)
}

// Stream invokes every step but the streaming tail to completion and then
// streams the tail. The tail is the last step together with the run of
// Transformer steps before it, whose chunks flow through without buffering.
func (s *Sequence) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, s, input, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		head := s.streamHead()
		v := input
		for i := 0; i < head; i++ {
			out, err := s.steps[i].Invoke(ctx, v, stepConfig(cfg, i))
			if err != nil {
				return annotate(stepPos(i), s.steps[i].Name(), err)
			}
			v = out
		}

		tr := &stageErrors{}
		cur, err := s.steps[head].Stream(ctx, v, stepConfig(cfg, head))
		if err != nil {
			return annotate(stepPos(head), s.steps[head].Name(), err)
		}
		cur = tr.stage(ctx, cur, head, s.steps[head].Name(), cfg.StreamBuffer())

		for i := head + 1; i < len(s.steps); i++ {
			t, _ := asTransformer(s.steps[i])
			next, err := t.Transform(ctx, cur, stepConfig(cfg, i))
			if err != nil {
				cur.Close()
				return annotate(stepPos(i), s.steps[i].Name(), err)
			}
			cur = tr.stage(ctx, next, i, s.steps[i].Name(), cfg.StreamBuffer())
		}
		return pipeStream(ctx, cur, emit)
	})
}

// Transform lets a sequence made only of transformers act as one.
func (s *Sequence) Transform(ctx context.Context, in *Stream, cfg Config) (*Stream, error) {
	if !s.canTransform() {
		v, err := Collect(ctx, in, Add)
		if err != nil {
			return nil, err
		}
		return s.Stream(ctx, v, cfg)
	}
	return streamRun(ctx, s, nil, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		tr := &stageErrors{}
		cur := in
		for i, step := range s.steps {
			t, _ := asTransformer(step)
			next, err := t.Transform(ctx, cur, stepConfig(cfg, i))
			if err != nil {
				cur.Close()
				return annotate(stepPos(i), step.Name(), err)
			}
			cur = tr.stage(ctx, next, i, step.Name(), cfg.StreamBuffer())
		}
		return pipeStream(ctx, cur, emit)
	})
}

func (s *Sequence) canTransform() bool {
	return s.streamHead() == 0 && canTransform(s.steps[0])
}

// streamHead returns the index of the first step that streams.
func (s *Sequence) streamHead() int {
	head := len(s.steps) - 1
	for head > 0 && canTransform(s.steps[head]) {
		head--
	}
	return head
}

// stageErrors annotates a stage's failure with its position exactly once,
// even when the failure travels on through later transformer stages.
type stageErrors struct {
	mu   sync.Mutex
	seen []error
}

func (t *stageErrors) annotate(pos, name string, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.seen {
		if errors.Is(err, s) {
			return err
		}
	}
	err = annotate(pos, name, err)
	t.seen = append(t.seen, err)
	return err
}

func (t *stageErrors) stage(ctx context.Context, in *Stream, i int, name string, buffer int) *Stream {
	return startStream(ctx, name, buffer, func(ctx context.Context, emit Emit) error {
		defer in.Close()
		for {
			chunk, ok, err := in.Next(ctx)
			if err != nil {
				return t.annotate(stepPos(i), name, err)
			}
			if !ok {
				return nil
			}
			if err := emit(chunk); err != nil {
				return err
			}
		}
	}, nil)
}

// canTransform reports whether r can consume a chunk stream without
// buffering it. Wrappers report the capability of what they wrap.
func canTransform(r Runnable) bool {
	_, ok := asTransformer(r)
	return ok
}

func asTransformer(r Runnable) (Transformer, bool) {
	if c, ok := r.(interface{ canTransform() bool }); ok && !c.canTransform() {
		return nil, false
	}
	t, ok := r.(Transformer)
	return t, ok
}
