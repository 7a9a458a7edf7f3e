package runnable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/internal/testutil"
)

func TestCoerce(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		unit  any
		kind  runnable.Kind
		input any
		want  any
	}{
		{"runnable", testutil.Double(), runnable.KindLambda, 2, 4},
		{"plain function", func(in any) any { return in }, runnable.KindLambda, "x", "x"},
		{"context function", func(_ context.Context, in any) (any, error) { return in, nil }, runnable.KindLambda, 1, 1},
		{"constant", 42, runnable.KindLeaf, "ignored", 42},
		{"map of units", map[string]any{"v": 7}, runnable.KindParallel, nil, map[string]any{"v": 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := runnable.Coerce(tt.unit)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Kind() != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, r.Kind())
			}
			out, err := r.Invoke(ctx, tt.input, runnable.Config{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m, ok := tt.want.(map[string]any); ok {
				if got, _ := out.(map[string]any); got["v"] != m["v"] || len(got) != len(m) {
					t.Errorf("expected %v, got %v", tt.want, out)
				}
				return
			}
			if out != tt.want {
				t.Errorf("expected %v, got %v", tt.want, out)
			}
		})
	}

	t.Run("nil unit", func(t *testing.T) {
		if _, err := runnable.Coerce(nil); !errors.Is(err, runnable.ErrComposition) {
			t.Errorf("expected ErrComposition, got %v", err)
		}
	})

	t.Run("unsupported function", func(t *testing.T) {
		if _, err := runnable.Coerce(func(a, b int) {}); !errors.Is(err, runnable.ErrComposition) {
			t.Errorf("expected ErrComposition, got %v", err)
		}
	})

	t.Run("typed maps of units", func(t *testing.T) {
		ra := testutil.NewRunAssert(t)
		units := map[string]runnable.Runnable{"same": runnable.NewPassthrough(), "double": testutil.Double()}
		r, err := runnable.Coerce(units)
		ra.NoError(err)
		ra.Equal(runnable.KindParallel, r.Kind())
		ra.Equal(map[string]any{"same": 3, "double": 6}, ra.Invokes(r, 3, runnable.Config{}))

		fns := map[string]func(any) any{"inc": func(n any) any { return n.(int) + 1 }}
		r, err = runnable.Coerce(fns)
		ra.NoError(err)
		ra.Equal(runnable.KindParallel, r.Kind())
		ra.Equal(map[string]any{"inc": 2}, ra.Invokes(r, 1, runnable.Config{}))

		r, err = runnable.Coerce(map[string]int{"v": 1})
		ra.NoError(err)
		ra.Equal(runnable.KindLeaf, r.Kind())
	})

	t.Run("must coerce panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected a panic")
			}
		}()
		runnable.MustCoerce(nil)
	})
}

func TestLeaves(t *testing.T) {
	ra := testutil.NewRunAssert(t)

	p := runnable.NewPassthrough()
	ra.Equal("x", ra.Invokes(p, "x", runnable.Config{}))
	ra.Equal([]any{"x"}, ra.Streams(p, "x", runnable.Config{}))

	c := runnable.NewConstant("k")
	ra.Equal("constant(k)", c.Name())
	ra.Equal("k", c.Value())
	ra.Equal([]any{"k", "k"}, func() []any {
		out, err := c.Batch(context.Background(), []any{1, 2}, runnable.Config{})
		ra.NoError(err)
		return out
	}())
}
