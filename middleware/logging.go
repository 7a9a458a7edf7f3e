package middleware

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/observability"
)

// Overlay merges cfg into every call to the wrapped runnable. The overlay
// wins over the caller's config.
func Overlay(cfg runnable.Config) Middleware {
	return func(r runnable.Runnable) runnable.Runnable {
		b, err := runnable.WithConfig(r, cfg)
		if err != nil {
			return failing(r, err)
		}
		return b
	}
}

// Callbacks registers handlers for the wrapped runnable and everything it
// runs beneath it.
func Callbacks(handlers ...runnable.Handler) Middleware {
	return Overlay(runnable.NewConfig().WithCallbacks(handlers...))
}

// Tags adds tags to every run of the wrapped runnable.
func Tags(tags ...string) Middleware {
	return Overlay(runnable.NewConfig().WithTags(tags...))
}

// Timeout bounds every call to the wrapped runnable.
func Timeout(d time.Duration) Middleware {
	return Overlay(runnable.NewConfig().WithTimeout(d))
}

// Logging adds structured logging to the runs of the wrapped runnable.
func Logging(logger runnable.Logger) Middleware {
	return Callbacks(runnable.LogHandler(logger, false))
}

// Tracing opens a span for every run of the wrapped runnable.
func Tracing(tp trace.TracerProvider) Middleware {
	return Callbacks(observability.Tracing(tp))
}

// Telemetry combines Tracing with run metrics recorded on meter.
func Telemetry(tp trace.TracerProvider, meter metric.Meter) (Middleware, error) {
	metrics, err := observability.Metrics(meter)
	if err != nil {
		return nil, err
	}
	return Callbacks(observability.Tracing(tp), metrics), nil
}
