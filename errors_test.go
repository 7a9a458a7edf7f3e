package runnable_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/internal/testutil"
)

func TestCancellation(t *testing.T) {
	t.Run("cancelled before the call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		probe := testutil.NewProbe(testutil.Sleep(0))
		l, _ := runnable.NewLambda("probe", probe.Func())
		_, err := l.Invoke(ctx, 1, runnable.Config{})
		if !errors.Is(err, runnable.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
		if probe.Calls() != 0 {
			t.Errorf("expected no calls, got %d", probe.Calls())
		}
	})

	t.Run("timeout cancels the running step", func(t *testing.T) {
		slow, _ := runnable.NewLambda("slow", testutil.Sleep(time.Second))
		seq := runnable.MustPipe(testutil.Double(), slow)

		start := time.Now()
		_, err := seq.Invoke(context.Background(), 1, runnable.NewConfig().WithTimeout(20*time.Millisecond))
		if !errors.Is(err, runnable.ErrCancelled) || !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected a deadline cancellation, got %v", err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Errorf("timeout was not honored")
		}
	})

	t.Run("timeout belongs to the root only", func(t *testing.T) {
		l := readConfig(runnable.KeyTimeout, runnable.KeyRunName)
		seq := runnable.MustPipe(echoInput(), l)
		out, err := seq.Invoke(context.Background(), nil,
			runnable.NewConfig().WithTimeout(time.Minute).WithRunName("outer"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m := out.(map[string]any); len(m) != 0 {
			t.Errorf("expected no timeout or run name below the root, got %v", m)
		}
	})
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "execution with path",
			err:  &runnable.ExecutionError{Name: "double", Path: []string{"step:1", "branch:a"}, Err: errBoom},
			want: "runnable: step:1 > branch:a (double) failed: boom",
		},
		{
			name: "execution without path",
			err:  &runnable.ExecutionError{Name: "double", Err: errBoom},
			want: "runnable: (double) failed: boom",
		},
		{
			name: "composition",
			err:  &runnable.CompositionError{Op: "pipe", Reason: "at least two steps are required"},
			want: "runnable: pipe: at least two steps are required",
		},
		{
			name: "unsupported mode",
			err:  &runnable.UnsupportedModeError{Name: "model", Mode: runnable.ModeSync},
			want: "runnable: model does not support sync mode",
		},
		{
			name: "cancellation",
			err:  &runnable.CancellationError{Name: "slow", Err: context.Canceled},
			want: "runnable: slow cancelled: context canceled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorSentinels(t *testing.T) {
	exec := &runnable.ExecutionError{Name: "x", Err: errBoom}
	if !errors.Is(exec, runnable.ErrExecution) || !errors.Is(exec, errBoom) {
		t.Errorf("execution error should match ErrExecution and its cause")
	}
	if errors.Is(exec, runnable.ErrCancelled) {
		t.Errorf("execution error should not match ErrCancelled")
	}
	comp := &runnable.CompositionError{Op: "pipe", Reason: "bad", Err: runnable.ErrTypeMismatch}
	if !errors.Is(comp, runnable.ErrComposition) || !errors.Is(comp, runnable.ErrTypeMismatch) {
		t.Errorf("composition error should match ErrComposition and its cause")
	}
}
