package builtin

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/xeipuuv/gojsonschema"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/builtin/script"
)

// JSONPathOption configures JSONPath.
type JSONPathOption func(*jsonPathOptions)

type jsonPathOptions struct {
	all        bool
	fallback   any
	hasDefault bool
	keepArrays bool
}

// MatchAll returns every match as []any instead of the first one.
func MatchAll() JSONPathOption {
	return func(o *jsonPathOptions) { o.all = true }
}

// WithDefault is returned when nothing matches.
func WithDefault(v any) JSONPathOption {
	return func(o *jsonPathOptions) {
		o.fallback = v
		o.hasDefault = true
	}
}

// KeepArrays stops a first match that is a one-element array from being
// unwrapped.
func KeepArrays() JSONPathOption {
	return func(o *jsonPathOptions) { o.keepArrays = true }
}

// JSONPath returns a unit extracting expr from its input.
func JSONPath(name, expr string, opts ...JSONPathOption) (*runnable.Lambda, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression %q: %w", expr, err)
	}
	var o jsonPathOptions
	for _, opt := range opts {
		opt(&o)
	}
	return runnable.Fn(name, func(_ context.Context, input any) (any, error) {
		matches := x.Get(input)
		switch {
		case len(matches) == 0 && o.hasDefault:
			return o.fallback, nil
		case o.all:
			if matches == nil {
				return []any{}, nil
			}
			return matches, nil
		case len(matches) == 0:
			return nil, nil
		}
		first := matches[0]
		if arr, ok := first.([]any); ok && len(arr) == 1 && !o.keepArrays {
			return arr[0], nil
		}
		return first, nil
	}), nil
}

// JSONPathBuilder builds "jsonpath" units.
type JSONPathBuilder struct{}

func (JSONPathBuilder) Metadata() UnitMetadata {
	return UnitMetadata{
		Type:        "jsonpath",
		Category:    "data",
		Description: "Extracts data from its input with a JSONPath expression",
		Shorthand:   "path",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":     map[string]any{"type": "string", "minLength": 1},
				"multiple": map[string]any{"type": "boolean"},
				"default":  map[string]any{},
				"unwrap":   map[string]any{"type": "boolean"},
			},
			"required": []string{"path"},
		},
		Examples: []Example{{
			Name:   "Extract user name",
			Config: map[string]any{"path": "$.user.name"},
			Input:  map[string]any{"user": map[string]any{"name": "Alice"}},
			Output: "Alice",
		}},
	}
}

func (JSONPathBuilder) Build(name string, config map[string]any) (runnable.Runnable, error) {
	path, _ := config["path"].(string)
	var opts []JSONPathOption
	if multiple, _ := config["multiple"].(bool); multiple {
		opts = append(opts, MatchAll())
	}
	if v, ok := config["default"]; ok {
		opts = append(opts, WithDefault(v))
	}
	if unwrap, ok := config["unwrap"].(bool); ok && !unwrap {
		opts = append(opts, KeepArrays())
	}
	return JSONPath(name, path, opts...)
}

// ValidateJSON returns a unit that passes its input through when it matches
// schema and fails with a ValidationError otherwise. Schema is JSON text
// (string or []byte) or a Go value shaped like a JSON schema.
func ValidateJSON(name string, schema any) (*runnable.Lambda, error) {
	var loader gojsonschema.JSONLoader
	switch s := schema.(type) {
	case string:
		loader = gojsonschema.NewStringLoader(s)
	case []byte:
		loader = gojsonschema.NewBytesLoader(s)
	default:
		loader = gojsonschema.NewGoLoader(s)
	}
	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return runnable.Fn(name, func(_ context.Context, input any) (any, error) {
		result, err := compiled.Validate(gojsonschema.NewGoLoader(input))
		if err != nil {
			return nil, fmt.Errorf("validation error: %w", err)
		}
		if !result.Valid() {
			return nil, &ValidationError{Subject: name + " input", Problems: problems(result)}
		}
		return input, nil
	}), nil
}

// ValidateBuilder builds "validate" units.
type ValidateBuilder struct{}

func (ValidateBuilder) Metadata() UnitMetadata {
	return UnitMetadata{
		Type:        "validate",
		Category:    "data",
		Description: "Validates its input against a JSON schema and passes it through",
		Shorthand:   "schema",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"schema": map[string]any{"type": []string{"object", "string"}},
			},
			"required": []string{"schema"},
		},
	}
}

func (ValidateBuilder) Build(name string, config map[string]any) (runnable.Runnable, error) {
	return ValidateJSON(name, config["schema"])
}

// templateFuncs are available to every Template.
var templateFuncs = template.FuncMap{
	"json": func(v any) string { return oj.JSON(v, &oj.Options{Sort: true}) },
}

// Template returns a unit rendering text with its input as the data.
func Template(name, text string) (*runnable.Lambda, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	return runnable.Fn(name, func(_ context.Context, input any) (string, error) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, input); err != nil {
			return "", fmt.Errorf("template execution failed: %w", err)
		}
		return buf.String(), nil
	}), nil
}

// TemplateBuilder builds "template" units.
type TemplateBuilder struct{}

func (TemplateBuilder) Metadata() UnitMetadata {
	return UnitMetadata{
		Type:        "template",
		Category:    "data",
		Description: "Renders a Go template with its input",
		Shorthand:   "template",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"template": map[string]any{"type": "string"},
			},
			"required": []string{"template"},
		},
		Examples: []Example{{
			Name:   "Greeting",
			Config: map[string]any{"template": "Hello, {{.name}}!"},
			Input:  map[string]any{"name": "Alice"},
			Output: "Hello, Alice!",
		}},
	}
}

func (TemplateBuilder) Build(name string, config map[string]any) (runnable.Runnable, error) {
	text, _ := config["template"].(string)
	return Template(name, text)
}

// Delay returns a unit that waits d, or until its context ends, and then
// passes its input through.
func Delay(name string, d time.Duration) *runnable.Lambda {
	return runnable.Fn(name, func(ctx context.Context, input any) (any, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return input, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// DelayBuilder builds "delay" units.
type DelayBuilder struct{}

func (DelayBuilder) Metadata() UnitMetadata {
	return UnitMetadata{
		Type:        "delay",
		Category:    "core",
		Description: "Waits for a duration and passes its input through",
		Shorthand:   "duration",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"duration": map[string]any{"type": "string", "pattern": "^([0-9.]+[a-zµ]+)+$"},
			},
		},
	}
}

func (DelayBuilder) Build(name string, config map[string]any) (runnable.Runnable, error) {
	d := time.Second
	if s, ok := config["duration"].(string); ok {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return nil, err
		}
		d = parsed
	}
	return Delay(name, d), nil
}

// LuaBuilder builds "lua" units. With stream set the script is a generator.
type LuaBuilder struct{}

func (LuaBuilder) Metadata() UnitMetadata {
	return UnitMetadata{
		Type:        "lua",
		Category:    "script",
		Description: "Runs exec(input) of a sandboxed Lua script",
		Shorthand:   "source",
		ConfigSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"source": map[string]any{"type": "string"},
				"stream": map[string]any{"type": "boolean"},
			},
			"required": []string{"source"},
		},
	}
}

func (LuaBuilder) Build(name string, config map[string]any) (runnable.Runnable, error) {
	source, _ := config["source"].(string)
	if stream, _ := config["stream"].(bool); stream {
		return script.LuaGenerator(name, source)
	}
	return script.Lua(name, source)
}
