// Package testutil provides testing utilities for runnable.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentstation/runnable"
)

// Recorder is a callback handler that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []runnable.Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle records ev.
func (r *Recorder) Handle(_ context.Context, ev runnable.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns the recorded events in arrival order.
func (r *Recorder) Events() []runnable.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]runnable.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Of returns the recorded events of type typ.
func (r *Recorder) Of(typ runnable.EventType) []runnable.Event {
	var out []runnable.Event
	for _, ev := range r.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Names returns the run names of the events of type typ.
func (r *Recorder) Names(typ runnable.EventType) []string {
	var out []string
	for _, ev := range r.Of(typ) {
		out = append(out, ev.Run.Name)
	}
	return out
}

// Probe wraps a function and records how it was called.
type Probe struct {
	fn      runnable.Func
	calls   atomic.Int64
	active  atomic.Int64
	peak    atomic.Int64
	started chan struct{}
}

// NewProbe wraps fn.
func NewProbe(fn runnable.Func) *Probe {
	return &Probe{fn: fn, started: make(chan struct{}, 1024)}
}

// Func returns the instrumented function.
func (p *Probe) Func() runnable.Func {
	return func(ctx context.Context, input any) (any, error) {
		p.calls.Add(1)
		n := p.active.Add(1)
		defer p.active.Add(-1)
		for {
			peak := p.peak.Load()
			if n <= peak || p.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		select {
		case p.started <- struct{}{}:
		default:
		}
		return p.fn(ctx, input)
	}
}

// Calls returns how many times the function ran.
func (p *Probe) Calls() int { return int(p.calls.Load()) }

// Peak returns the highest number of concurrent calls seen.
func (p *Probe) Peak() int { return int(p.peak.Load()) }

// Started is signalled every time a call begins.
func (p *Probe) Started() <-chan struct{} { return p.started }

// Sleep returns a function that waits for d or until its context ends,
// then returns its input.
func Sleep(d time.Duration) runnable.Func {
	return func(ctx context.Context, input any) (any, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return input, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Block returns a function that waits until its context ends and reports
// the cancellation through cancelled.
func Block(cancelled *atomic.Int64) runnable.Func {
	return func(ctx context.Context, _ any) (any, error) {
		<-ctx.Done()
		cancelled.Add(1)
		return nil, ctx.Err()
	}
}
