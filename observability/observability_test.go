package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/observability"
)

var (
	double = runnable.Fn("double", func(_ context.Context, n int) (int, error) { return n * 2, nil })
	addOne = runnable.Fn("add_one", func(_ context.Context, n int) (int, error) { return n + 1, nil })
	broken = runnable.Fn("broken", func(_ context.Context, _ int) (int, error) { return 0, errors.New("boom") })
)

var letters = runnable.NewGenerator("letters", func(_ context.Context, _ any, emit runnable.Emit) error {
	for _, s := range []string{"a", "b", "c"} {
		if err := emit(s); err != nil {
			return err
		}
	}
	return nil
})

func newTracer(t *testing.T) (*tracetest.SpanRecorder, runnable.Handler) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr, observability.Tracing(tp)
}

func spansByName(spans []sdktrace.ReadOnlySpan) map[string]sdktrace.ReadOnlySpan {
	out := make(map[string]sdktrace.ReadOnlySpan, len(spans))
	for _, s := range spans {
		out[s.Name()] = s
	}
	return out
}

func TestTracing(t *testing.T) {
	sr, h := newTracer(t)
	pipeline, err := runnable.Pipe(double, addOne)
	require.NoError(t, err)

	cfg := runnable.NewConfig().WithCallbacks(h).WithRunName("pipeline")
	out, err := pipeline.Invoke(context.Background(), 3, cfg)
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	spans := spansByName(sr.Ended())
	require.Len(t, spans, 3)
	root := spans["pipeline"]
	require.NotNil(t, root)
	assert.False(t, root.Parent().IsValid())
	assert.Equal(t, codes.Ok, root.Status().Code)

	for _, name := range []string{"double", "add_one"} {
		child := spans[name]
		require.NotNil(t, child, name)
		assert.Equal(t, root.SpanContext().SpanID(), child.Parent().SpanID(), name)
		assert.Equal(t, root.SpanContext().TraceID(), child.SpanContext().TraceID(), name)
		assert.Contains(t, child.Attributes(), attribute.String("runnable.kind", "lambda"))
		assert.Contains(t, child.Attributes(), attribute.Int("runnable.depth", 1))
	}
}

func TestTracingErrors(t *testing.T) {
	sr, h := newTracer(t)
	pipeline, err := runnable.Pipe(double, broken)
	require.NoError(t, err)

	_, err = pipeline.Invoke(context.Background(), 1, runnable.NewConfig().WithCallbacks(h))
	require.Error(t, err)

	spans := spansByName(sr.Ended())
	require.Contains(t, spans, "broken")
	assert.Equal(t, codes.Error, spans["broken"].Status().Code)
	require.NotEmpty(t, spans["broken"].Events())
	assert.Equal(t, "exception", spans["broken"].Events()[0].Name)
	assert.Equal(t, codes.Ok, spans["double"].Status().Code)
}

func TestTracingChunks(t *testing.T) {
	sr, h := newTracer(t)
	st, err := letters.Stream(context.Background(), nil, runnable.NewConfig().WithCallbacks(h))
	require.NoError(t, err)
	_, err = runnable.CollectAll(context.Background(), st)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Len(t, spans[0].Events(), 3)
	assert.Equal(t, "chunk", spans[0].Events()[0].Name)
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	h, err := observability.Metrics(mp.Meter(observability.InstrumentationName))
	require.NoError(t, err)
	cfg := runnable.NewConfig().WithCallbacks(h)

	pipeline, err := runnable.Pipe(double, addOne)
	require.NoError(t, err)
	_, err = pipeline.Invoke(context.Background(), 1, cfg)
	require.NoError(t, err)
	_, err = broken.Invoke(context.Background(), 1, cfg)
	require.Error(t, err)
	st, err := letters.Stream(context.Background(), nil, cfg)
	require.NoError(t, err)
	_, err = runnable.CollectAll(context.Background(), st)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.EqualValues(t, 5, counter(t, rm, "runnable.runs"))
	assert.EqualValues(t, 1, counter(t, rm, "runnable.errors"))
	assert.EqualValues(t, 3, counter(t, rm, "runnable.chunks"))
	assert.EqualValues(t, 0, counter(t, rm, "runnable.active"))

	m := find(t, rm, "runnable.duration")
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
	}
	assert.EqualValues(t, 5, total)
}

func find(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not recorded", name)
	return metricdata.Metrics{}
}

func counter(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	sum, ok := find(t, rm, name).Data.(metricdata.Sum[int64])
	require.True(t, ok, name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}
