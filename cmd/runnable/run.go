package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentstation/runnable"
)

// runFlags holds configuration for the run command.
type runFlags struct {
	pipelineFlags
	input       string
	inputFile   string
	stream      bool
	batch       string
	batchPolicy string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline of builtin units",
		Long: `Run composes the --step units into a sequence and invokes it with the
JSON --input. With --stream the chunks are printed as they arrive; with
--batch every element of a JSON or YAML list file is run as one input.`,
		Example: `  # Extract a field and render it
  runnable run -s 'jsonpath:$.user.name' -s 'template:Hello, {{.}}!' --input '{"user":{"name":"Ada"}}'

  # Stream the values a Lua script emits
  runnable run -s 'lua:function exec(s) for w in s:gmatch("%S+") do emit(w) end end' --input '"a b c"' --stream

  # Run a batch of inputs two at a time
  runnable run -s 'js:function exec(n) { return n * n }' --batch inputs.json --max-concurrency 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, a)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input as JSON")
	cmd.Flags().StringVar(&f.inputFile, "input-file", "", "Read the JSON or YAML input from a file")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "Print chunks as they are produced")
	cmd.Flags().StringVar(&f.batch, "batch", "", "Run every element of a JSON or YAML list file")
	cmd.Flags().StringVar(&f.batchPolicy, "batch-policy", runnable.BatchWaitAll.String(), "Batch failure policy (wait_all, fail_fast, return_errors)")
	cmd.MarkFlagsMutuallyExclusive("stream", "batch")
	cmd.MarkFlagsMutuallyExclusive("input", "input-file", "batch")
	return cmd
}

func (f *runFlags) run(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	pipeline, err := f.build(ctx, a)
	if err != nil {
		return err
	}
	cfg := f.config(a)
	out := cmd.OutOrStdout()
	start := time.Now()

	switch {
	case f.batch != "":
		policy, ok := runnable.ParseBatchPolicy(f.batchPolicy)
		if !ok {
			return fmt.Errorf("unknown batch policy %q", f.batchPolicy)
		}
		inputs, err := readBatch(f.batch)
		if err != nil {
			return err
		}
		results, err := pipeline.Batch(ctx, inputs, cfg.WithBatchPolicy(policy))
		if err != nil {
			return err
		}
		for i, r := range results {
			if err, ok := r.(error); ok {
				results[i] = map[string]any{"error": err.Error()}
			}
		}
		if err := printValue(out, a.settings.Output, results); err != nil {
			return err
		}

	case f.stream:
		input, err := f.readInput()
		if err != nil {
			return err
		}
		st, err := pipeline.Stream(ctx, input, cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		for chunk, err := range st.Chunks(ctx) {
			if err != nil {
				return err
			}
			if err := printChunk(out, a.settings.Output, chunk); err != nil {
				return err
			}
		}

	default:
		input, err := f.readInput()
		if err != nil {
			return err
		}
		result, err := pipeline.Invoke(ctx, input, cfg)
		if err != nil {
			return err
		}
		if err := printValue(out, a.settings.Output, result); err != nil {
			return err
		}
	}

	a.logger.Info(ctx, "pipeline completed", "name", pipeline.Name(), "duration", time.Since(start))
	return nil
}

// readInput returns the --input value, the contents of --input-file, or
// nil when neither is set.
func (f *runFlags) readInput() (any, error) {
	if f.inputFile != "" {
		return readData(f.inputFile)
	}
	if f.input == "" {
		return nil, nil
	}
	v, err := oj.ParseString(f.input)
	if err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return v, nil
}

// readBatch reads a list of inputs from a JSON or YAML file.
func readBatch(path string) ([]any, error) {
	data, err := readData(path)
	if err != nil {
		return nil, err
	}
	items, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("batch file %s must hold a list, got %T", path, data)
	}
	return items, nil
}

// readData parses a JSON or YAML file, chosen by extension.
func readData(path string) (any, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand path: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 - User-provided input file
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		if v, err = oj.Parse(data); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
	}
	return v, nil
}
