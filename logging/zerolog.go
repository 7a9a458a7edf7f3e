package logging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentstation/runnable"
)

type zerologLogger struct {
	l zerolog.Logger
}

// Zerolog adapts l. Key/value pairs become fields; an error value is
// written with Err so it lands under the "error" key.
func Zerolog(l zerolog.Logger) runnable.Logger {
	return zerologLogger{l: l}
}

func (z zerologLogger) Debug(ctx context.Context, msg string, kv ...any) {
	z.write(ctx, z.l.Debug(), msg, kv)
}

func (z zerologLogger) Info(ctx context.Context, msg string, kv ...any) {
	z.write(ctx, z.l.Info(), msg, kv)
}

func (z zerologLogger) Error(ctx context.Context, msg string, kv ...any) {
	z.write(ctx, z.l.Error(), msg, kv)
}

func (z zerologLogger) write(ctx context.Context, ev *zerolog.Event, msg string, kv []any) {
	if ev == nil {
		return
	}
	ev = ev.Ctx(ctx)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 == len(kv) {
			ev = ev.Str(key, "(missing)")
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
