package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/runnable/builtin"
)

const tokenize = `-- @name: tokenize
-- @description: Splits text into words
-- @stream: true
function exec(input)
  for _, word in ipairs(str_split(input, " ")) do
    emit(word)
  end
end
`

// execute runs the CLI with args and returns what it printed to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parseJSON(t *testing.T, s string) any {
	t.Helper()
	v, err := oj.ParseString(s)
	require.NoError(t, err)
	return v
}

func TestRunInvoke(t *testing.T) {
	out, err := execute(t, "run",
		"-s", "jsonpath:$.user.name",
		"-s", "template:Hello, {{.}}!",
		"--input", `{"user":{"name":"Ada"}}`,
	)
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!\n", out)

	out, err = execute(t, "run", "-s", "jsonpath:$.a", "--input", `{"a":[1,2]}`, "--output", "json")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, parseJSON(t, out))
}

func TestRunInputFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "input.yaml", "user:\n  name: Grace\n")
	out, err := execute(t, "run", "-s", "jsonpath:$.user.name", "--input-file", path)
	require.NoError(t, err)
	assert.Equal(t, "Grace\n", out)
}

func TestRunStream(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenize.lua", tokenize)

	out, err := execute(t, "run", "--scripts", dir, "-s", "script:tokenize", "--input", `"a b c"`, "--stream")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", out)

	out, err = execute(t, "run", "--scripts", dir, "-s", "script:tokenize", "--input", `"a b"`, "--stream", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "\"a\"\n\"b\"\n", out)
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	jsonInputs := writeFile(t, dir, "inputs.json", `[{"n":1},{"n":2}]`)
	out, err := execute(t, "run",
		"-s", "js:function exec(x) { return x.n * 10 }",
		"--batch", jsonInputs,
		"--max-concurrency", "1",
		"-o", "json",
	)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(10), int64(20)}, parseJSON(t, out))

	yamlInputs := writeFile(t, dir, "inputs.yaml", "- hello\n- world\n")
	out, err = execute(t, "run", "-s", "template:x-{{.}}", "--batch", yamlInputs, "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, []any{"x-hello", "x-world"}, parseJSON(t, out))

	t.Run("cached", func(t *testing.T) {
		repeated := writeFile(t, dir, "repeated.json", `[{"n":3},{"n":3},{"n":4}]`)
		out, err := execute(t, "run", "-s", "jsonpath:$.n", "--batch", repeated, "--cache", "8", "-o", "json")
		require.NoError(t, err)
		assert.Equal(t, []any{int64(3), int64(3), int64(4)}, parseJSON(t, out))
	})

	t.Run("return errors", func(t *testing.T) {
		mixed := writeFile(t, dir, "mixed.json", `[1, "one"]`)
		out, err := execute(t, "run",
			"-s", `validate:{"type":"number"}`,
			"--batch", mixed,
			"--batch-policy", "return_errors",
			"-o", "json",
		)
		require.NoError(t, err)
		results, ok := parseJSON(t, out).([]any)
		require.True(t, ok)
		require.Len(t, results, 2)
		assert.Equal(t, int64(1), results[0])
		assert.Contains(t, results[1], "error")
	})

	t.Run("not a list", func(t *testing.T) {
		single := writeFile(t, dir, "single.json", `{"n":1}`)
		_, err := execute(t, "run", "-s", "jsonpath:$.n", "--batch", single)
		assert.ErrorContains(t, err, "must hold a list")
	})
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no steps", []string{"run"}, "at least one --step"},
		{"unknown type", []string{"run", "-s", "http:example.com"}, "unknown unit type"},
		{"script without dir", []string{"run", "-s", "script:tokenize"}, "script steps need --scripts"},
		{"bad input", []string{"run", "-s", "jsonpath:$.a", "--input", "{"}, "parse input"},
		{"bad output", []string{"run", "-s", "jsonpath:$.a", "-o", "xml"}, "unknown output format"},
		{"bad batch policy", []string{"run", "-s", "jsonpath:$.a", "--batch", "x.json", "--batch-policy", "sometimes"}, "unknown batch policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("failed pipeline", func(t *testing.T) {
		_, err := execute(t, "run", "-s", `validate:{"type":"number"}`, "--input", `"x"`)
		assert.ErrorIs(t, err, builtin.ErrInvalid)
	})
}

func TestDescribe(t *testing.T) {
	out, err := execute(t, "describe", "-s", "jsonpath:$.a", "-s", "delay:1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "jsonpath | delay (sequence)")
	assert.Contains(t, out, "  step:0: jsonpath (lambda)")
	assert.Contains(t, out, "Depth: 2, nodes: 3")

	out, err = execute(t, "describe", "-s", "jsonpath:$.a", "--retries", "2", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "kind: retry")
	assert.Contains(t, out, "kind: lambda")
}

func TestUnits(t *testing.T) {
	out, err := execute(t, "units")
	require.NoError(t, err)
	assert.Contains(t, out, "jsonpath:<path>")
	assert.Contains(t, out, "Total: 6 unit types")

	out, err = execute(t, "units", "info", "jsonpath")
	require.NoError(t, err)
	assert.Contains(t, out, "Unit Type: jsonpath")
	assert.Contains(t, out, "Extract user name")

	_, err = execute(t, "units", "info", "http")
	assert.ErrorContains(t, err, "not found")

	out, err = execute(t, "units", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "type: lua")
}

func TestScripts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tokenize.lua", tokenize)
	writeFile(t, dir, "upper.lua", "function exec(input) return string.upper(input) end\n")

	out, err := execute(t, "scripts", "--scripts", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "tokenize")
	assert.Contains(t, lines[0], "stream")
	assert.Contains(t, lines[1], "(no description)")

	_, err = execute(t, "scripts")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "runnable version dev\n", out)

	out, err = execute(t, "version", "-o", "json")
	require.NoError(t, err)
	v, ok := parseJSON(t, out).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dev", v["version"])
}

func TestSettings(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		t.Setenv("RUNNABLE_OUTPUT", "json")
		out, err := execute(t, "version")
		require.NoError(t, err)
		v, ok := parseJSON(t, out).(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "dev", v["version"])
	})

	t.Run("config file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "runnable.yaml", "output: yaml\nmax-concurrency: 2\n")
		out, err := execute(t, "version", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "version: dev")
	})

	t.Run("flags win over the environment", func(t *testing.T) {
		t.Setenv("RUNNABLE_OUTPUT", "json")
		out, err := execute(t, "version", "-o", "text")
		require.NoError(t, err)
		assert.Equal(t, "runnable version dev\n", out)
	})

	t.Run("missing config file", func(t *testing.T) {
		_, err := execute(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "read config")
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tilde only", "~", home},
		{"tilde with path", "~/test/path", filepath.Join(home, "test", "path")},
		{"absolute path", "/absolute/path", "/absolute/path"},
		{"relative path", "relative/path", "relative/path"},
		{"empty path", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandPath(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
