package runnable_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/agentstation/runnable"
)

type counter int

func (c counter) Add(other any) (any, error) {
	o, ok := other.(counter)
	if !ok {
		return nil, runnable.ErrNotAddable
	}
	return c + o, nil
}

func TestAdd(t *testing.T) {
	tests := []struct {
		name  string
		acc   any
		chunk any
		want  any
	}{
		{"nil accumulator", nil, "a", "a"},
		{"nil chunk", "a", nil, "a"},
		{"strings concatenate", "ab", "c", "abc"},
		{"bytes append", []byte("ab"), []byte("c"), []byte("abc")},
		{"slices append", []any{1}, []any{2, 3}, []any{1, 2, 3}},
		{"maps merge recursively", map[string]any{"a": "x", "b": 1}, map[string]any{"a": "y", "c": 2}, map[string]any{"a": "xy", "b": 1, "c": 2}},
		{"addable", counter(2), counter(3), counter(5)},
		{"other values are replaced", 1, 2, 2},
		{"mismatched kinds are replaced", "a", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runnable.Add(tt.acc, tt.chunk)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Add(%v, %v) = %v, want %v", tt.acc, tt.chunk, got, tt.want)
			}
		})
	}

	t.Run("inputs are not mutated", func(t *testing.T) {
		acc := map[string]any{"a": "x"}
		if _, err := runnable.Add(acc, map[string]any{"a": "y"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acc["a"] != "x" {
			t.Errorf("accumulator was mutated: %v", acc)
		}
	})

	t.Run("addable errors surface", func(t *testing.T) {
		if _, err := runnable.Add(counter(1), "x"); !errors.Is(err, runnable.ErrNotAddable) {
			t.Errorf("expected ErrNotAddable, got %v", err)
		}
	})
}

func TestStream(t *testing.T) {
	ctx := context.Background()

	t.Run("chunks iterator", func(t *testing.T) {
		var got []any
		for chunk, err := range runnable.FromSlice(1, 2, 3).Chunks(ctx) {
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got = append(got, chunk)
		}
		if !reflect.DeepEqual(got, []any{1, 2, 3}) {
			t.Errorf("expected [1 2 3], got %v", got)
		}
	})

	t.Run("breaking out closes the stream", func(t *testing.T) {
		st := runnable.NewStream(ctx, 1, func(ctx context.Context, emit runnable.Emit) error {
			for i := 0; ; i++ {
				if err := emit(i); err != nil {
					return err
				}
			}
		})
		for chunk := range st.Chunks(ctx) {
			if chunk == 2 {
				break
			}
		}
		if _, _, err := st.Next(ctx); !errors.Is(err, runnable.ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	})

	t.Run("exhausted stream stays exhausted", func(t *testing.T) {
		st := runnable.FromSlice("x")
		if _, ok, _ := st.Next(ctx); !ok {
			t.Fatal("expected a chunk")
		}
		for range 2 {
			if _, ok, err := st.Next(ctx); ok || err != nil {
				t.Errorf("expected clean end, got %v %v", ok, err)
			}
		}
	})

	t.Run("cancelled consumer", func(t *testing.T) {
		st := runnable.NewStream(ctx, 1, func(ctx context.Context, emit runnable.Emit) error {
			<-ctx.Done()
			return ctx.Err()
		})
		defer st.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := st.Next(cctx)
		if !errors.Is(err, runnable.ErrCancelled) {
			t.Errorf("expected ErrCancelled, got %v", err)
		}
	})

	t.Run("cancelled producer", func(t *testing.T) {
		pctx, cancel := context.WithCancel(ctx)
		st := runnable.NewStream(pctx, 1, func(ctx context.Context, emit runnable.Emit) error {
			<-ctx.Done()
			return ctx.Err()
		})
		cancel()
		_, err := runnable.CollectAll(ctx, st)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("collect with merger", func(t *testing.T) {
		got, err := runnable.Collect(ctx, runnable.FromSlice("a", "b"), runnable.LastValue)
		if err != nil || got != "b" {
			t.Errorf("expected b, got %v %v", got, err)
		}
		got, err = runnable.Collect(ctx, runnable.FromSlice("a", "b"), nil)
		if err != nil || got != "ab" {
			t.Errorf("expected ab, got %v %v", got, err)
		}
	})
}
