package middleware

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/agentstation/runnable"
)

// Durations are the timing totals of one runnable.
type Durations struct {
	Count  int64
	Errors int64
	Total  time.Duration
	Last   time.Duration
}

// Average returns the mean duration of a call.
func (d Durations) Average() time.Duration {
	if d.Count == 0 {
		return 0
	}
	return d.Total / time.Duration(d.Count)
}

// Stats accumulates Durations by runnable name. It is safe for concurrent
// use.
type Stats struct {
	mu     sync.Mutex
	byName map[string]Durations
}

// NewStats returns empty stats.
func NewStats() *Stats {
	return &Stats{byName: make(map[string]Durations)}
}

// Get returns the durations recorded for name.
func (s *Stats) Get(name string) (Durations, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byName[name]
	return d, ok
}

// Names returns the recorded names in sorted order.
func (s *Stats) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Stats) record(name string, elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.byName[name]
	d.Count++
	if err != nil {
		d.Errors++
	}
	d.Total += elapsed
	d.Last = elapsed
	s.byName[name] = d
}

// Timing records how long each call to the wrapped runnable takes. A stream
// is timed from the call until its last chunk.
func Timing(stats *Stats) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		name := r.Name()
		return Wrap(r,
			func(ctx context.Context, input any, cfg runnable.Config) (any, error) {
				start := time.Now()
				out, err := r.Invoke(ctx, input, cfg)
				stats.record(name, time.Since(start), err)
				return out, err
			},
			func(ctx context.Context, input any, cfg runnable.Config) (*runnable.Stream, error) {
				start := time.Now()
				st, err := r.Stream(ctx, input, cfg)
				if err != nil {
					stats.record(name, time.Since(start), err)
					return nil, err
				}
				return relay(ctx, st, cfg, nil, func(err error) error {
					stats.record(name, time.Since(start), err)
					return err
				}), nil
			},
		)
	}
}
