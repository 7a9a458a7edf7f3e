package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/builtin"
	"github.com/agentstation/runnable/builtin/script"
	"github.com/agentstation/runnable/middleware"
)

// scriptPrefix selects a discovered Lua script instead of a builtin type.
const scriptPrefix = "script:"

// pipelineFlags are the flags shared by commands that build a pipeline.
type pipelineFlags struct {
	steps   []string
	scripts string
	retries int
	cache   int
	name    string
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.steps, "step", "s", nil, `Pipeline step as "type:argument" or "script:name" (repeatable)`)
	cmd.Flags().StringVar(&f.scripts, "scripts", "", "Directory of Lua scripts for script: steps")
	cmd.Flags().IntVar(&f.retries, "retries", 0, "Retry the pipeline up to this many extra times")
	cmd.Flags().IntVar(&f.cache, "cache", 0, "Cache up to this many results of repeated inputs")
	cmd.Flags().StringVar(&f.name, "name", "", "Run name reported to callbacks")
}

// build composes the steps into one runnable. A single step runs on its
// own; several steps run in sequence.
func (f *pipelineFlags) build(ctx context.Context, a *app) (runnable.Runnable, error) {
	if len(f.steps) == 0 {
		return nil, errors.New("at least one --step is required")
	}

	var scripts *script.Manager
	if f.scripts != "" {
		dir, err := expandPath(f.scripts)
		if err != nil {
			return nil, fmt.Errorf("expand path: %w", err)
		}
		scripts = script.NewManager(dir)
		if err := scripts.Discover(); err != nil {
			a.logger.Error(ctx, "some scripts failed to load", "error", err)
		}
	}

	registry := builtin.Default()
	units := make([]any, 0, len(f.steps))
	for i, step := range f.steps {
		unit, err := buildStep(registry, scripts, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step, err)
		}
		units = append(units, unit)
	}

	var pipeline runnable.Runnable
	if len(units) == 1 {
		pipeline = units[0].(runnable.Runnable)
	} else {
		seq, err := runnable.Pipe(units...)
		if err != nil {
			return nil, err
		}
		pipeline = seq
	}

	if f.retries > 0 {
		policy := runnable.DefaultRetryPolicy()
		policy.MaxAttempts = f.retries + 1
		pipeline = middleware.Retry(policy)(pipeline)
	}
	if f.cache > 0 {
		pipeline = middleware.Cache(middleware.NewLRUCache(f.cache))(pipeline)
	}
	return pipeline, nil
}

func buildStep(registry *builtin.Registry, scripts *script.Manager, step string) (runnable.Runnable, error) {
	name, ok := strings.CutPrefix(step, scriptPrefix)
	if !ok {
		return registry.Parse(step)
	}
	if scripts == nil {
		return nil, errors.New("script steps need --scripts")
	}
	return scripts.Unit(name)
}

// config returns the run config with the pipeline's run name applied.
func (f *pipelineFlags) config(a *app) runnable.Config {
	cfg := a.runConfig()
	if f.name != "" {
		cfg = cfg.WithRunName(f.name)
	}
	return cfg
}
