package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/logging"
)

// settings are the values read from flags, RUNNABLE_* environment
// variables and the optional config file, in that order of precedence.
type settings struct {
	Output         string
	LogLevel       string
	LogFormat      string
	NoColor        bool
	Verbose        bool
	MaxConcurrency int
	StreamBuffer   int
	Timeout        time.Duration
}

// app holds the state shared by the commands of one CLI invocation.
type app struct {
	v        *viper.Viper
	settings settings
	logger   runnable.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "runnable",
		Short: "Compose and run units through one invoke, batch and stream contract",
		Long: `runnable composes builtin units (JSONPath, JSON Schema validation,
templates, Lua and JavaScript scripts, delays) into a pipeline and runs it
in invoke, stream or batch mode.

Settings come from flags, RUNNABLE_* environment variables and an optional
YAML config file.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (YAML)")
	flags.StringP("output", "o", textFormat, "Output format (text, json, yaml)")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.BoolP("verbose", "v", false, "Log every run, including stream chunks")
	flags.Int("max-concurrency", runnable.DefaultMaxConcurrency, "Maximum concurrent calls in batches and parallel branches")
	flags.Int("stream-buffer", runnable.DefaultStreamBuffer, "Chunks buffered per stream")
	flags.Duration("timeout", 0, "Timeout for the whole call (0 = none)")

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(a),
		newDescribeCmd(a),
		newUnitsCmd(a),
		newScriptsCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

// load reads the config file, if any, and resolves the settings.
func (a *app) load(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if file := a.v.GetString("config"); file != "" {
		path, err := expandPath(file)
		if err != nil {
			return fmt.Errorf("expand path: %w", err)
		}
		a.v.SetConfigFile(path)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.settings = settings{
		Output:         a.v.GetString("output"),
		LogLevel:       a.v.GetString("log-level"),
		LogFormat:      a.v.GetString("log-format"),
		NoColor:        a.v.GetBool("no-color"),
		Verbose:        a.v.GetBool("verbose"),
		MaxConcurrency: a.v.GetInt("max-concurrency"),
		StreamBuffer:   a.v.GetInt("stream-buffer"),
		Timeout:        a.v.GetDuration("timeout"),
	}
	switch a.settings.Output {
	case textFormat, jsonFormat, yamlFormat:
	default:
		return fmt.Errorf("unknown output format %q", a.settings.Output)
	}
	if a.settings.Verbose && a.settings.LogLevel != "debug" {
		a.settings.LogLevel = "debug"
	}

	a.logger = logging.New(logging.Config{
		Level:   a.settings.LogLevel,
		Format:  a.settings.LogFormat,
		NoColor: a.settings.NoColor,
		Output:  cmd.ErrOrStderr(),
	})
	return nil
}

// runConfig is the config every call made by the CLI starts from.
func (a *app) runConfig() runnable.Config {
	cfg := runnable.NewConfig().
		WithCallbacks(runnable.LogHandler(a.logger, a.settings.Verbose))
	if a.settings.MaxConcurrency > 0 {
		cfg = cfg.WithMaxConcurrency(a.settings.MaxConcurrency)
	}
	if a.settings.StreamBuffer > 0 {
		cfg = cfg.WithStreamBuffer(a.settings.StreamBuffer)
	}
	if a.settings.Timeout > 0 {
		cfg = cfg.WithTimeout(a.settings.Timeout)
	}
	return cfg
}
