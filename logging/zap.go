package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/agentstation/runnable"
)

type zapLogger struct {
	s *zap.SugaredLogger
}

// Zap adapts l through its sugared form, so key/value pairs become fields.
func Zap(l *zap.Logger) runnable.Logger {
	return zapLogger{s: l.Sugar()}
}

func (z zapLogger) Debug(_ context.Context, msg string, kv ...any) { z.s.Debugw(msg, kv...) }
func (z zapLogger) Info(_ context.Context, msg string, kv ...any)  { z.s.Infow(msg, kv...) }
func (z zapLogger) Error(_ context.Context, msg string, kv ...any) { z.s.Errorw(msg, kv...) }
