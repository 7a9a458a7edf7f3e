package middleware

import (
	"context"
	"time"

	"github.com/agentstation/runnable"
)

// MetricsCollector collects run metrics.
type MetricsCollector interface {
	RecordRunStart(info runnable.RunInfo)
	RecordRunEnd(info runnable.RunInfo, d time.Duration, err error)
	RecordChunk(info runnable.RunInfo)
}

// Metrics reports every run of the wrapped runnable to collector.
func Metrics(collector MetricsCollector) Middleware {
	return Callbacks(runnable.HandlerFunc(func(_ context.Context, ev runnable.Event) {
		switch ev.Type {
		case runnable.EventStart:
			collector.RecordRunStart(ev.Run)
		case runnable.EventChunk:
			collector.RecordChunk(ev.Run)
		case runnable.EventEnd, runnable.EventError:
			collector.RecordRunEnd(ev.Run, ev.Duration, ev.Err)
		}
	}))
}
