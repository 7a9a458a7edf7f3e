// Package observability exports runs to OpenTelemetry. Tracing and Metrics
// return callback handlers, so a call is instrumented by adding them to its
// config:
//
//	h, _ := observability.Metrics(meter)
//	cfg := runnable.NewConfig().WithCallbacks(observability.Tracing(tp), h)
package observability

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/runnable"
)

// InstrumentationName names the tracer and meter this package creates.
const InstrumentationName = "github.com/agentstation/runnable"

type tracer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[uuid.UUID]trace.Span
}

// Tracing returns a Handler that opens one span per run. A child run's span
// is parented to the span of its parent run; a root run's span is parented
// to whatever span the caller's context carries.
func Tracing(tp trace.TracerProvider) runnable.Handler {
	return &tracer{
		tracer: tp.Tracer(InstrumentationName),
		spans:  make(map[uuid.UUID]trace.Span),
	}
}

func (t *tracer) Handle(ctx context.Context, ev runnable.Event) {
	switch ev.Type {
	case runnable.EventStart:
		t.start(ctx, ev.Run)
	case runnable.EventChunk:
		if span := t.lookup(ev.Run.ID); span != nil {
			span.AddEvent("chunk", trace.WithAttributes(
				attribute.String("runnable.chunk.type", fmt.Sprintf("%T", ev.Chunk)),
			))
		}
	case runnable.EventEnd:
		if span := t.take(ev.Run.ID); span != nil {
			span.SetStatus(codes.Ok, "")
			span.End()
		}
	case runnable.EventError:
		if span := t.take(ev.Run.ID); span != nil {
			span.RecordError(ev.Err)
			span.SetStatus(codes.Error, ev.Err.Error())
			span.End()
		}
	}
}

func (t *tracer) start(ctx context.Context, info runnable.RunInfo) {
	if parent := t.lookup(info.ParentID); parent != nil {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, span := t.tracer.Start(ctx, info.Name,
		trace.WithTimestamp(info.Start),
		trace.WithAttributes(runAttributes(info)...),
	)
	t.mu.Lock()
	t.spans[info.ID] = span
	t.mu.Unlock()
}

func (t *tracer) lookup(id uuid.UUID) trace.Span {
	if id == uuid.Nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spans[id]
}

func (t *tracer) take(id uuid.UUID) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	span := t.spans[id]
	delete(t.spans, id)
	return span
}

func runAttributes(info runnable.RunInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("runnable.name", info.Name),
		attribute.String("runnable.kind", string(info.Kind)),
		attribute.String("runnable.run_id", info.ID.String()),
		attribute.Int("runnable.depth", info.Depth),
		attribute.Bool("runnable.async", info.Async),
	}
	if len(info.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("runnable.tags", info.Tags))
	}
	return attrs
}
