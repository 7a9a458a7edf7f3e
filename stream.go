package runnable

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// Emit hands one chunk to the consumer of a stream. It blocks while the
// stream buffer is full and fails once the stream is cancelled or closed.
type Emit func(chunk any) error

type streamItem struct {
	chunk any
	err   error
	done  bool
}

// Stream is a finite, non-restartable sequence of chunks pulled by the
// consumer. Chunks are produced on their own goroutine into a bounded
// channel, so at most the buffer size is held in memory.
//
// A Stream must be drained or closed; Close releases the producer.
type Stream struct {
	name   string
	items  <-chan streamItem
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	ended  bool
	closed bool
	err    error
}

// NewStream starts produce on its own goroutine and returns the stream of
// the chunks it emits. The producer's context is cancelled when the consumer
// closes the stream or ctx ends.
func NewStream(ctx context.Context, buffer int, produce func(ctx context.Context, emit Emit) error) *Stream {
	return startStream(ctx, "stream", buffer, produce, nil)
}

func startStream(ctx context.Context, name string, buffer int,
	produce func(ctx context.Context, emit Emit) error, release func()) *Stream {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan streamItem, buffer)

	go func() {
		defer close(ch)
		if release != nil {
			defer release()
		}
		emit := func(chunk any) error {
			// A cancelled producer must stop even when the buffer has room.
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case ch <- streamItem{chunk: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := produce(ctx, emit)
		select {
		case ch <- streamItem{err: err, done: true}:
		case <-ctx.Done():
		}
	}()

	return &Stream{name: name, items: ch, ctx: ctx, cancel: cancel}
}

// FromSlice returns a stream yielding chunks in order.
func FromSlice(chunks ...any) *Stream {
	ch := make(chan streamItem, len(chunks)+1)
	for _, c := range chunks {
		ch <- streamItem{chunk: c}
	}
	ch <- streamItem{done: true}
	close(ch)
	return &Stream{name: "slice", items: ch, ctx: context.Background(), cancel: func() {}}
}

// Next returns the next chunk. ok is false once the stream is exhausted or
// failed; err is the failure, if any. Next is not safe for concurrent use.
func (s *Stream) Next(ctx context.Context) (chunk any, ok bool, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, false, ErrStreamClosed
	}
	if s.ended {
		err := s.err
		s.mu.Unlock()
		return nil, false, err
	}
	s.mu.Unlock()

	select {
	case item, open := <-s.items:
		switch {
		case !open:
			return nil, false, s.end(s.abortErr())
		case item.done:
			return nil, false, s.end(item.err)
		default:
			return item.chunk, true, nil
		}
	case <-ctx.Done():
		return nil, false, &CancellationError{Name: s.name, Err: ctx.Err()}
	}
}

// abortErr explains a channel closed without a terminal item.
func (s *Stream) abortErr() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}
	if err := s.ctx.Err(); err != nil {
		return &CancellationError{Name: s.name, Err: err}
	}
	return ErrStreamClosed
}

func (s *Stream) end(err error) error {
	s.mu.Lock()
	s.ended = true
	s.err = err
	s.mu.Unlock()
	s.cancel()
	return err
}

// Close cancels the producer and releases the stream. It is safe to call
// more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	return nil
}

// Chunks returns an iterator over the remaining chunks. A failure is yielded
// once as the final pair. Breaking out of the loop closes the stream.
func (s *Stream) Chunks(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			chunk, ok, err := s.Next(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(chunk, nil) {
				s.Close()
				return
			}
		}
	}
}

// Collect drains s and folds every chunk with merge. An empty stream
// collects to nil.
func Collect(ctx context.Context, s *Stream, merge Merger) (any, error) {
	defer s.Close()
	if merge == nil {
		merge = Add
	}
	var acc any
	for {
		chunk, ok, err := s.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return acc, nil
		}
		if acc, err = merge(acc, chunk); err != nil {
			return nil, err
		}
	}
}

// CollectAll drains s into a slice.
func CollectAll(ctx context.Context, s *Stream) ([]any, error) {
	defer s.Close()
	var out []any
	for chunk, err := range s.Chunks(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, nil
}

// pipeStream forwards every chunk of in to emit.
func pipeStream(ctx context.Context, in *Stream, emit Emit) error {
	defer in.Close()
	for {
		chunk, ok, err := in.Next(ctx)
		if err != nil || !ok {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
}

// Merger combines an accumulated value with the next chunk.
type Merger func(acc, chunk any) (any, error)

// Addable is implemented by chunk types that know how to combine.
type Addable interface {
	Add(other any) (any, error)
}

// ErrNotAddable is returned by Addable implementations that cannot combine
// with the given chunk.
var ErrNotAddable = errors.New("runnable: chunks cannot be added")

// Add is the default Merger. Strings concatenate, byte slices and []any
// append, map[string]any values merge key by key with Add applied to shared
// keys, and Addable values add themselves. Any other chunk replaces the
// accumulated value.
func Add(acc, chunk any) (any, error) {
	if acc == nil {
		return chunk, nil
	}
	if chunk == nil {
		return acc, nil
	}
	switch a := acc.(type) {
	case string:
		if c, ok := chunk.(string); ok {
			return a + c, nil
		}
	case []byte:
		if c, ok := chunk.([]byte); ok {
			out := make([]byte, 0, len(a)+len(c))
			return append(append(out, a...), c...), nil
		}
	case []any:
		if c, ok := chunk.([]any); ok {
			out := make([]any, 0, len(a)+len(c))
			return append(append(out, a...), c...), nil
		}
	case map[string]any:
		if c, ok := chunk.(map[string]any); ok {
			out := make(map[string]any, len(a)+len(c))
			for k, v := range a {
				out[k] = v
			}
			for k, v := range c {
				prev, exists := out[k]
				if !exists {
					out[k] = v
					continue
				}
				merged, err := Add(prev, v)
				if err != nil {
					return nil, err
				}
				out[k] = merged
			}
			return out, nil
		}
	case Addable:
		return a.Add(chunk)
	}
	return chunk, nil
}

// LastValue is a Merger that keeps only the most recent chunk. Every earlier
// chunk is discarded.
func LastValue(_, chunk any) (any, error) {
	return chunk, nil
}

// Merging is implemented by nodes that know how the chunks of their Stream
// combine into the value their Invoke returns.
type Merging interface {
	Merger() Merger
}

// MergerOf returns the merger that folds the chunks of r's Stream into the
// value r's Invoke returns. Nodes that do not implement Merging use Add.
//
// A lambda that returns a runnable defers to that runnable at call time,
// which MergerOf cannot see.
func MergerOf(r Runnable) Merger {
	if m, ok := r.(Merging); ok {
		if merge := m.Merger(); merge != nil {
			return merge
		}
	}
	return Add
}
