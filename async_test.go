package runnable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/internal/testutil"
)

func TestFuture(t *testing.T) {
	ctx := context.Background()
	ra := testutil.NewRunAssert(t)

	t.Run("resolved", func(t *testing.T) {
		f := runnable.Resolved(1, nil)
		select {
		case <-f.Done():
		default:
			t.Fatal("expected a completed future")
		}
		out, err := f.Await(ctx)
		ra.NoError(err)
		ra.Equal(1, out)
	})

	t.Run("await honors its context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		f := runnable.Go(func() (any, error) {
			<-release
			return nil, nil
		})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.Await(cctx)
		if !errors.Is(err, runnable.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})

	t.Run("batch async", func(t *testing.T) {
		out, err := runnable.BatchAsync(ctx, testutil.Double(), []any{1, 2, 3}, runnable.Config{}).Await(ctx)
		ra.NoError(err)
		ra.Equal([]any{2, 4, 6}, out)
	})

	t.Run("batch async failure", func(t *testing.T) {
		_, err := runnable.BatchAsync(ctx, failOnOdd(), []any{0, 1}, runnable.Config{}).Await(ctx)
		ra.ErrorIs(err, errBoom)
	})

	t.Run("stream async", func(t *testing.T) {
		st, err := runnable.StreamAsync(ctx, testutil.Chunks("letters", []any{"a", "b"}), nil, runnable.Config{})
		ra.NoError(err)
		out, err := runnable.Collect(ctx, st, nil)
		ra.NoError(err)
		ra.Equal("ab", out)
	})

	t.Run("binding forwards async mode", func(t *testing.T) {
		async, _ := runnable.NewLambda("async-only", runnable.LambdaPair{
			Async: func(_ context.Context, in any, _ runnable.Config) *runnable.Future {
				return runnable.Resolved(in, nil)
			},
		})
		b, err := runnable.Bind(async, runnable.Args{"k": "v"})
		ra.NoError(err)
		out, err := runnable.InvokeAsync(ctx, b, map[string]any{}, runnable.Config{}).Await(ctx)
		ra.NoError(err)
		ra.Equal(map[string]any{"k": "v"}, out)
	})
}
