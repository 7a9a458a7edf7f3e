package script

import (
	"testing"

	"github.com/Shopify/go-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPull(t *testing.T) {
	l := newSandbox()

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"int becomes float", 42, 42.0},
		{"int64 becomes float", int64(7), 7.0},
		{"float", 3.5, 3.5},
		{"string", "hello", "hello"},
		{"array", []any{1, "two"}, []any{1.0, "two"}},
		{"map", map[string]any{"key": "value", "nested": map[string]any{"n": 1}}, map[string]any{"key": "value", "nested": map[string]any{"n": 1.0}}},
		{"empty map becomes map", map[string]any{}, map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			push(l, tt.value)
			got := pull(l, -1)
			l.Pop(1)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 0, l.Top(), "stack must be balanced")
		})
	}
}

func TestSandbox(t *testing.T) {
	l := newSandbox()

	for _, name := range blockedGlobals {
		l.Global(name)
		assert.True(t, l.IsNil(-1), "%s should be removed", name)
		l.Pop(1)
	}
	require.NoError(t, lua.DoString(l, `assert(os.execute == nil and os.getenv == nil)`))
	require.NoError(t, lua.DoString(l, `assert(type(os.time) == "function")`))
}

func TestUtilities(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   any
	}{
		{"json_encode", `return json_encode({key = "test"})`, `{"key":"test"}`},
		{"json_decode", `local v = json_decode('{"a":[1,2]}') return v.a[2]`, 2.0},
		{"str_trim", `return str_trim("  hi  ")`, "hi"},
		{"str_split", `return str_split("a,b,c", ",")`, []any{"a", "b", "c"}},
		{"str_contains", `return str_contains("hello world", "world")`, true},
		{"str_replace", `return str_replace("aaa", "a", "b", 2)`, "bba"},
		{"str_replace all", `return str_replace("aaa", "a", "b")`, "bbb"},
		{"type_of", `return type_of({})`, "table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newSandbox()
			require.NoError(t, lua.DoString(l, tt.script))
			assert.Equal(t, tt.want, pull(l, -1))
		})
	}
}
