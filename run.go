package runnable

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/runnable/internal/exec"
)

// run is the per-invocation scope of one node call. It owns the run frame,
// the optional deadline and the callback notifications, and is discarded
// when the call returns.
type run struct {
	ctx      context.Context
	cfg      Config
	info     RunInfo
	handlers []Handler
	release  context.CancelFunc
}

// begin opens a run for node r. A call without a parent frame is a root
// call and gets the process-wide defaults layered beneath cfg.
func begin(ctx context.Context, r Runnable, input any, cfg Config) (*run, error) {
	if exec.IsRoot(ctx) {
		cfg = withDefaults(cfg)
	}
	name := cfg.RunName()
	if name == "" {
		name = r.Name()
	}
	if err := ctx.Err(); err != nil {
		return nil, &CancellationError{Name: name, Err: err}
	}

	ctx, frame := exec.Enter(ctx, name, string(r.Kind()))
	release := context.CancelFunc(func() {})
	if d := cfg.Timeout(); d > 0 {
		ctx, release = context.WithTimeout(ctx, d)
	}

	s := &run{
		ctx:      ctx,
		cfg:      cfg,
		handlers: cfg.Callbacks(),
		release:  release,
		info: RunInfo{
			ID:       frame.ID,
			ParentID: frame.ParentID,
			Name:     name,
			Kind:     r.Kind(),
			Tags:     cfg.Tags(),
			Metadata: cfg.Metadata(),
			Depth:    frame.Depth,
			Async:    frame.Async,
			Start:    frame.Start,
		},
	}
	s.notify(Event{Type: EventStart, Input: input})
	return s, nil
}

func (s *run) notify(ev Event) {
	if len(s.handlers) == 0 {
		return
	}
	ev.Run = s.info
	for _, h := range s.handlers {
		h.Handle(s.ctx, ev)
	}
}

// child returns the config handed to children of this run.
func (s *run) child() Config { return s.cfg.forChild() }

// finish closes the run, reporting out or err to the handlers.
func (s *run) finish(out any, err error) (any, error) {
	defer s.release()
	d := time.Since(s.info.Start)
	if err != nil {
		err = wrapErr(s.info.Name, err)
		s.notify(Event{Type: EventError, Err: err, Duration: d})
		return nil, err
	}
	s.notify(Event{Type: EventEnd, Output: out, Duration: d})
	return out, nil
}

// invokeRun runs fn as one invocation of r.
func invokeRun(ctx context.Context, r Runnable, input any, cfg Config,
	fn func(ctx context.Context, cfg Config) (any, error)) (any, error) {
	s, err := begin(ctx, r, input, cfg)
	if err != nil {
		return nil, err
	}
	out, err := fn(s.ctx, s.child())
	return s.finish(out, err)
}

// streamRun runs produce as one streaming invocation of r. The run stays
// open until produce returns or the consumer closes the stream.
func streamRun(ctx context.Context, r Runnable, input any, cfg Config,
	produce func(ctx context.Context, cfg Config, emit Emit) error) (*Stream, error) {
	s, err := begin(ctx, r, input, cfg)
	if err != nil {
		return nil, err
	}
	childCfg := s.child()
	observe := len(s.handlers) > 0
	merge := MergerOf(r)

	st := startStream(s.ctx, s.info.Name, s.cfg.StreamBuffer(), func(ctx context.Context, emit Emit) error {
		var (
			acc      any
			mergeErr error
		)
		err := produce(ctx, childCfg, func(chunk any) error {
			if observe {
				s.notify(Event{Type: EventChunk, Chunk: chunk})
				if mergeErr == nil {
					if acc, mergeErr = merge(acc, chunk); mergeErr != nil {
						acc = nil
						mergeErr = fmt.Errorf("combine chunks of %s: %w", s.info.Name, mergeErr)
					}
				}
			}
			return emit(chunk)
		})
		if err != nil {
			err = wrapErr(s.info.Name, err)
			s.notify(Event{Type: EventError, Err: err, Duration: time.Since(s.info.Start)})
			return err
		}
		s.notify(Event{Type: EventEnd, Output: acc, Err: mergeErr, Duration: time.Since(s.info.Start)})
		return nil
	}, s.release)
	return st, nil
}

// rootBatch prepares the context and config of a batch call so the items
// fanned out beneath it see the defaults exactly once.
func rootBatch(ctx context.Context, cfg Config) (context.Context, Config) {
	if !exec.IsRoot(ctx) {
		return ctx, cfg
	}
	return exec.WithRoot(ctx), withDefaults(cfg)
}

// InvokeEach batches r by invoking it once per input, under the
// concurrency limit and batch policy of cfg. Nodes without a batched path
// of their own implement Batch with it.
//
// The batch policy governs this batch only: each invocation runs without
// it, so a nested batch fails as a whole instead of returning its errors as
// values.
func InvokeEach(ctx context.Context, r Runnable, inputs []any, cfg Config) ([]any, error) {
	ctx, cfg = rootBatch(ctx, cfg)
	item := cfg.Without(KeyBatchPolicy)
	return runBatch(ctx, r.Name(), len(inputs), cfg, func(ctx context.Context, i int) (any, error) {
		return r.Invoke(ctx, inputs[i], item)
	})
}
