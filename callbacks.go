package runnable

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a point in the life of a run.
type EventType string

const (
	EventStart EventType = "start"
	EventEnd   EventType = "end"
	EventError EventType = "error"
	EventChunk EventType = "chunk"
)

// RunInfo identifies one node invocation within a call tree.
type RunInfo struct {
	ID       uuid.UUID
	ParentID uuid.UUID
	Name     string
	Kind     Kind
	Tags     []string
	Metadata map[string]any
	Depth    int
	Async    bool
	Start    time.Time
}

// IsRoot reports whether the run has no parent.
func (r RunInfo) IsRoot() bool { return r.ParentID == uuid.Nil }

// Event is delivered to every Handler registered in the call's config.
type Event struct {
	Type EventType
	Run  RunInfo

	Input  any
	Output any
	Chunk  any

	// Err is set on error events. On the end event of a stream it reports
	// chunks that could not be combined into Output.
	Err error

	// Duration is set on end and error events.
	Duration time.Duration
}

// Handler observes runs. Handlers are called synchronously from the goroutine
// executing the node and must be safe for concurrent use, since parallel
// branches report at the same time.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) { f(ctx, ev) }

// Logger is the logging surface handlers and middleware write to.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// LogHandler returns a Handler that logs run start, end and error events.
// Chunks are logged at debug level only when chunks is true.
func LogHandler(logger Logger, chunks bool) Handler {
	return HandlerFunc(func(ctx context.Context, ev Event) {
		kv := []any{
			"run_id", ev.Run.ID.String(),
			"name", ev.Run.Name,
			"kind", string(ev.Run.Kind),
			"depth", ev.Run.Depth,
		}
		switch ev.Type {
		case EventStart:
			logger.Debug(ctx, "run started", kv...)
		case EventEnd:
			logger.Info(ctx, "run finished", append(kv, "duration", ev.Duration)...)
		case EventError:
			logger.Error(ctx, "run failed", append(kv, "duration", ev.Duration, "error", ev.Err)...)
		case EventChunk:
			if chunks {
				logger.Debug(ctx, "run chunk", append(kv, "chunk", ev.Chunk)...)
			}
		}
	})
}
