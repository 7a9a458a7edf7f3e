// Package exec holds the per-invocation state of a run. A Frame is created
// for every node call, attached to the call's context and dropped when the
// call returns; frames are never shared between invocations.
package exec

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type frameKey struct{}

type asyncKey struct{}

type rootKey struct{}

// Frame describes one node invocation.
type Frame struct {
	ID       uuid.UUID
	ParentID uuid.UUID
	Name     string
	Kind     string
	Depth    int
	Async    bool
	Start    time.Time

	path []string
}

// Enter creates the frame for a node called with ctx and returns a context
// carrying it. The new frame is a child of any frame already in ctx and
// inherits its async mode.
func Enter(ctx context.Context, name, kind string) (context.Context, *Frame) {
	f := &Frame{
		ID:    uuid.New(),
		Name:  name,
		Kind:  kind,
		Start: time.Now(),
		Async: IsAsync(ctx),
	}
	if parent, ok := FromContext(ctx); ok {
		f.ParentID = parent.ID
		f.Depth = parent.Depth + 1
		f.path = make([]string, 0, len(parent.path)+1)
		f.path = append(f.path, parent.path...)
	}
	f.path = append(f.path, name)
	return context.WithValue(ctx, frameKey{}, f), f
}

// FromContext returns the innermost frame in ctx.
func FromContext(ctx context.Context) (*Frame, bool) {
	f, ok := ctx.Value(frameKey{}).(*Frame)
	return f, ok
}

// IsRoot reports whether ctx carries no frame yet and was not marked by
// WithRoot.
func IsRoot(ctx context.Context) bool {
	if _, ok := FromContext(ctx); ok {
		return false
	}
	marked, _ := ctx.Value(rootKey{}).(bool)
	return !marked
}

// WithRoot marks ctx as already prepared by a root call, so calls fanned out
// beneath it (such as the items of a batch) are not treated as roots again.
func WithRoot(ctx context.Context) context.Context {
	return context.WithValue(ctx, rootKey{}, true)
}

// WithAsync marks every frame entered beneath ctx as async.
func WithAsync(ctx context.Context) context.Context {
	return context.WithValue(ctx, asyncKey{}, true)
}

// IsAsync reports whether ctx was marked by WithAsync.
func IsAsync(ctx context.Context) bool {
	async, _ := ctx.Value(asyncKey{}).(bool)
	return async
}

// Duration returns the time elapsed since the frame was entered.
func (f *Frame) Duration() time.Duration {
	return time.Since(f.Start)
}

// Path returns node names from the root run down to f.
func (f *Frame) Path() []string {
	out := make([]string, len(f.path))
	copy(out, f.path)
	return out
}
