package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/agentstation/runnable"
)

type meters struct {
	runs     metric.Int64Counter
	errors   metric.Int64Counter
	chunks   metric.Int64Counter
	active   metric.Int64UpDownCounter
	duration metric.Float64Histogram
}

// Metrics returns a Handler recording run counts, errors, chunks and
// durations on meter.
func Metrics(meter metric.Meter) (runnable.Handler, error) {
	runs, err := meter.Int64Counter("runnable.runs",
		metric.WithDescription("Total number of finished runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runnable.runs counter: %w", err)
	}

	errs, err := meter.Int64Counter("runnable.errors",
		metric.WithDescription("Total number of failed runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runnable.errors counter: %w", err)
	}

	chunks, err := meter.Int64Counter("runnable.chunks",
		metric.WithDescription("Total number of streamed chunks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runnable.chunks counter: %w", err)
	}

	active, err := meter.Int64UpDownCounter("runnable.active",
		metric.WithDescription("Number of runs in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runnable.active gauge: %w", err)
	}

	duration, err := meter.Float64Histogram("runnable.duration",
		metric.WithDescription("Duration of runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating runnable.duration histogram: %w", err)
	}

	return &meters{runs: runs, errors: errs, chunks: chunks, active: active, duration: duration}, nil
}

func (m *meters) Handle(ctx context.Context, ev runnable.Event) {
	attrs := metric.WithAttributes(
		attribute.String("name", ev.Run.Name),
		attribute.String("kind", string(ev.Run.Kind)),
	)
	switch ev.Type {
	case runnable.EventStart:
		m.active.Add(ctx, 1, attrs)
	case runnable.EventChunk:
		m.chunks.Add(ctx, 1, attrs)
	case runnable.EventEnd, runnable.EventError:
		status := "ok"
		if ev.Type == runnable.EventError {
			status = "error"
			m.errors.Add(ctx, 1, attrs)
		}
		m.active.Add(ctx, -1, attrs)
		m.runs.Add(ctx, 1, metric.WithAttributes(
			attribute.String("name", ev.Run.Name),
			attribute.String("kind", string(ev.Run.Kind)),
			attribute.String("status", status),
		))
		m.duration.Record(ctx, ev.Duration.Seconds(), attrs)
	}
}
