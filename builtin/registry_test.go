package builtin_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/builtin"
)

func TestRegistry(t *testing.T) {
	r := builtin.Default()
	assert.Equal(t, []string{"delay", "js", "jsonpath", "lua", "template", "validate"}, r.Types())

	t.Run("build validates config", func(t *testing.T) {
		_, err := r.Build("jsonpath", "x", map[string]any{})
		assert.ErrorIs(t, err, builtin.ErrInvalid)

		_, err = r.Build("delay", "x", map[string]any{"duration": "soon"})
		assert.ErrorIs(t, err, builtin.ErrInvalid)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := r.Build("http", "x", nil)
		assert.ErrorIs(t, err, builtin.ErrUnknownType)
		_, err = r.Parse("http:example.com")
		assert.ErrorIs(t, err, builtin.ErrUnknownType)
	})

	t.Run("parse fills the shorthand key", func(t *testing.T) {
		u, err := r.Parse("jsonpath:$.a")
		require.NoError(t, err)
		assert.Equal(t, "jsonpath", u.Name())
		assert.Equal(t, 1, invoke(t, u, map[string]any{"a": 1}))

		u, err = r.Parse(`validate:{"type":"string"}`)
		require.NoError(t, err)
		assert.Equal(t, "ok", invoke(t, u, "ok"))

		u, err = r.Parse("delay:1ms")
		require.NoError(t, err)
		assert.Equal(t, "x", invoke(t, u, "x"))
	})

	t.Run("lua through the registry", func(t *testing.T) {
		u, err := r.Build("lua", "words", map[string]any{
			"source": `function exec(input) emit("a") emit("b") end`,
			"stream": true,
		})
		require.NoError(t, err)
		st, err := u.Stream(context.Background(), nil, runnable.Config{})
		require.NoError(t, err)
		chunks, err := runnable.CollectAll(context.Background(), st)
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, chunks)
	})

	t.Run("examples build and run", func(t *testing.T) {
		for _, typ := range r.Types() {
			b, _ := r.Get(typ)
			for _, ex := range b.Metadata().Examples {
				u, err := r.Build(typ, ex.Name, ex.Config)
				require.NoError(t, err, "%s: %s", typ, ex.Name)
				assert.EqualValues(t, ex.Output, invoke(t, u, ex.Input), "%s: %s", typ, ex.Name)
			}
		}
	})
}
