package runnable

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

var mapType = reflect.TypeFor[map[string]any]()

// Parallel runs named branches on the same input and collects their outputs
// into a map[string]any with exactly the branch keys.
type Parallel struct {
	base
	keys     []string
	branches map[string]Runnable
}

var _ Runnable = (*Parallel)(nil)

// NewParallel coerces every branch and builds a Parallel. At least one
// branch is required.
func NewParallel(branches map[string]any) (*Parallel, error) {
	if len(branches) == 0 {
		return nil, compositionErr("parallel", "at least one branch is required")
	}
	p := &Parallel{branches: make(map[string]Runnable, len(branches))}
	for key, u := range branches {
		r, err := Coerce(u)
		if err != nil {
			return nil, &CompositionError{Op: "parallel", Reason: "branch " + key, Err: err}
		}
		p.branches[key] = r
		p.keys = append(p.keys, key)
	}
	slices.Sort(p.keys)

	var in reflect.Type
	for i, key := range p.keys {
		t := p.branches[key].InputType()
		if i == 0 {
			in = t
		} else if t != in {
			in = nil
			break
		}
	}
	p.base = base{
		name:    "{" + strings.Join(p.keys, ", ") + "}",
		inType:  in,
		outType: mapType,
	}
	return p, nil
}

// MustParallel is like NewParallel but panics on error.
func MustParallel(branches map[string]any) *Parallel {
	p, err := NewParallel(branches)
	if err != nil {
		panic(err)
	}
	return p
}

// Alongside runs r under key next to the named others.
func Alongside(r any, key string, others map[string]any) (*Parallel, error) {
	if _, dup := others[key]; dup {
		return nil, compositionErr("alongside", "branch %q given twice", key)
	}
	branches := make(map[string]any, len(others)+1)
	for k, v := range others {
		branches[k] = v
	}
	branches[key] = r
	return NewParallel(branches)
}

func (p *Parallel) Kind() Kind { return KindParallel }

// Keys returns the branch keys in sorted order.
func (p *Parallel) Keys() []string { return slices.Clone(p.keys) }

// Branch returns the branch stored under key.
func (p *Parallel) Branch(key string) (Runnable, bool) {
	r, ok := p.branches[key]
	return r, ok
}

func (p *Parallel) Children() []Child {
	out := make([]Child, len(p.keys))
	for i, key := range p.keys {
		out[i] = Child{Key: branchPos(key), Node: p.branches[key]}
	}
	return out
}

// Merger folds the partial maps of Stream key by key, each key with the
// merger of its branch.
func (p *Parallel) Merger() Merger {
	merges := make(map[string]Merger, len(p.keys))
	for _, key := range p.keys {
		merges[key] = MergerOf(p.branches[key])
	}
	return func(acc, chunk any) (any, error) {
		part, ok := chunk.(map[string]any)
		if !ok {
			return Add(acc, chunk)
		}
		prev, _ := acc.(map[string]any)
		out := make(map[string]any, len(p.keys))
		maps.Copy(out, prev)
		for key, v := range part {
			merge, ok := merges[key]
			if !ok {
				merge = Add
			}
			merged, err := merge(out[key], v)
			if err != nil {
				return nil, err
			}
			out[key] = merged
		}
		return out, nil
	}
}

func branchConfig(cfg Config, key string) Config {
	return cfg.WithTags("map:" + branchPos(key))
}

// Invoke runs every branch concurrently. The first failure cancels the
// others through the shared context.
func (p *Parallel) Invoke(ctx context.Context, input any, cfg Config) (any, error) {
	return invokeRun(ctx, p, input, cfg, func(ctx context.Context, cfg Config) (any, error) {
		results := make([]any, len(p.keys))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.MaxConcurrency())
		for i, key := range p.keys {
			g.Go(func() error {
				branch := p.branches[key]
				out, err := branch.Invoke(gctx, input, branchConfig(cfg, key))
				if err != nil {
					return annotate(branchPos(key), branch.Name(), err)
				}
				results[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		out := make(map[string]any, len(p.keys))
		for i, key := range p.keys {
			out[key] = results[i]
		}
		return out, nil
	})
}

func (p *Parallel) Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error) {
	return InvokeEach(ctx, p, inputs, cfg)
}

// Stream streams every branch concurrently. Each chunk is a partial map
// holding only the key whose branch produced it.
func (p *Parallel) Stream(ctx context.Context, input any, cfg Config) (*Stream, error) {
	return streamRun(ctx, p, input, cfg, func(ctx context.Context, cfg Config, emit Emit) error {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.MaxConcurrency())
		for _, key := range p.keys {
			g.Go(func() error {
				branch := p.branches[key]
				st, err := branch.Stream(gctx, input, branchConfig(cfg, key))
				if err != nil {
					return annotate(branchPos(key), branch.Name(), err)
				}
				defer st.Close()
				emitted := false
				for {
					chunk, ok, err := st.Next(gctx)
					if err != nil {
						return annotate(branchPos(key), branch.Name(), err)
					}
					if !ok && emitted {
						return nil
					}
					// A branch without chunks still reports its key, as
					// Invoke would.
					emitted = true
					mu.Lock()
					err = emit(map[string]any{key: chunk})
					mu.Unlock()
					if err != nil || !ok {
						return err
					}
				}
			})
		}
		return g.Wait()
	})
}
