package runnable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/internal/testutil"
)

var errOther = errors.New("other")

func TestFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("first success wins", func(t *testing.T) {
		f, err := runnable.WithFallbacks(testutil.Fail("primary", errBoom), []any{testutil.Double(), testutil.Square()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out, err := f.Invoke(ctx, 3, runnable.Config{})
		if err != nil || out != 6 {
			t.Errorf("expected 6, got %v %v", out, err)
		}
	})

	t.Run("all failures are joined", func(t *testing.T) {
		f, _ := runnable.WithFallbacks(testutil.Fail("a", errBoom), []any{testutil.Fail("b", errOther)})
		_, err := f.Invoke(ctx, nil, runnable.Config{})
		if !errors.Is(err, errBoom) || !errors.Is(err, errOther) {
			t.Errorf("expected both failures, got %v", err)
		}
		if !errors.Is(err, runnable.ErrExecution) {
			t.Errorf("expected ErrExecution, got %v", err)
		}
	})

	t.Run("handle if limits fallbacks", func(t *testing.T) {
		probe := testutil.NewProbe(func(_ context.Context, in any) (any, error) { return in, nil })
		alt, _ := runnable.NewLambda("alt", probe.Func())
		f, _ := runnable.WithFallbacks(testutil.Fail("a", errBoom), []any{alt},
			runnable.HandleIf(func(err error) bool { return errors.Is(err, errOther) }))

		_, err := f.Invoke(ctx, 1, runnable.Config{})
		if !errors.Is(err, errBoom) {
			t.Errorf("expected errBoom, got %v", err)
		}
		if probe.Calls() != 0 {
			t.Errorf("fallback should not run, ran %d times", probe.Calls())
		}
	})

	t.Run("stream falls over before delivery", func(t *testing.T) {
		f, _ := runnable.WithFallbacks(testutil.Fail("a", errBoom), []any{testutil.Chunks("letters", []any{"x", "y"})})
		st, err := f.Stream(ctx, nil, runnable.Config{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out, err := runnable.CollectAll(ctx, st)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 2 || out[0] != "x" || out[1] != "y" {
			t.Errorf("expected [x y], got %v", out)
		}
	})

	t.Run("no fallbacks", func(t *testing.T) {
		_, err := runnable.WithFallbacks(testutil.Double(), nil)
		if !errors.Is(err, runnable.ErrComposition) {
			t.Errorf("expected ErrComposition, got %v", err)
		}
	})
}
