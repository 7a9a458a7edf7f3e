package builtin

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/agentstation/runnable"
)

// ErrNoExecFunction is returned when a JavaScript source does not define exec.
var ErrNoExecFunction = errors.New("builtin: exec function not defined")

// JavaScript returns a unit calling exec(input) of source. Each invocation
// gets its own runtime; the run is interrupted when the context ends.
func JavaScript(name, source string) (*runnable.Lambda, error) {
	prog, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return runnable.Fn(name, func(ctx context.Context, input any) (any, error) {
		return runProgram(ctx, prog, input)
	}), nil
}

func runProgram(ctx context.Context, prog *goja.Program, input any) (any, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunProgram(prog); err != nil {
		return nil, scriptError(ctx, err)
	}
	exec, ok := goja.AssertFunction(vm.Get("exec"))
	if !ok {
		return nil, ErrNoExecFunction
	}
	out, err := exec(goja.Undefined(), vm.ToValue(input))
	if err != nil {
		return nil, scriptError(ctx, err)
	}
	if goja.IsUndefined(out) || goja.IsNull(out) {
		return nil, nil
	}
	return out.Export(), nil
}

// scriptError reports an interrupted run as the context error that caused it.
func scriptError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) && ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("script error: %w", err)
}

// JavaScriptBuilder builds "js" units.
type JavaScriptBuilder struct{}

func (JavaScriptBuilder) Metadata() UnitMetadata {
	return UnitMetadata{
		Type:        "js",
		Category:    "script",
		Description: "Runs exec(input) of a JavaScript source",
		Shorthand:   "source",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"source": map[string]any{"type": "string"},
			},
			"required": []string{"source"},
		},
		Examples: []Example{{
			Name:   "Double a field",
			Config: map[string]any{"source": "function exec(input) { return input.n * 2 }"},
			Input:  map[string]any{"n": 21},
			Output: 42,
		}},
	}
}

func (JavaScriptBuilder) Build(name string, config map[string]any) (runnable.Runnable, error) {
	source, _ := config["source"].(string)
	return JavaScript(name, source)
}
