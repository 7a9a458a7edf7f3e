// Package logging adapts structured loggers to runnable.Logger so they can
// back runnable.LogHandler and the logging middleware.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/runnable"
)

// Config selects how New builds a zerolog-backed logger.
type Config struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
	// Output defaults to stderr.
	Output io.Writer `mapstructure:"-"`
}

// New returns a zerolog-backed Logger. Format "console" writes human
// readable lines; anything else writes JSON. Unknown levels mean info.
func New(cfg Config) runnable.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: "15:04:05.000"}
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	return Zerolog(zerolog.New(out).Level(level).With().Timestamp().Logger())
}

// Nop discards everything.
func Nop() runnable.Logger { return nop{} }

type nop struct{}

func (nop) Debug(context.Context, string, ...any) {}
func (nop) Info(context.Context, string, ...any)  {}
func (nop) Error(context.Context, string, ...any) {}
