package testutil

import (
	"context"
	"strconv"

	"github.com/agentstation/runnable"
)

// Double returns a typed lambda doubling ints.
func Double() *runnable.Lambda {
	return runnable.Fn("double", func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
}

// Square returns a typed lambda squaring ints.
func Square() *runnable.Lambda {
	return runnable.Fn("square", func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})
}

// AddOne returns a typed lambda adding one.
func AddOne() *runnable.Lambda {
	return runnable.Fn("add_one", func(_ context.Context, n int) (int, error) {
		return n + 1, nil
	})
}

// Stringify returns a typed lambda formatting ints.
func Stringify() *runnable.Lambda {
	return runnable.Fn("stringify", func(_ context.Context, n int) (string, error) {
		return strconv.Itoa(n), nil
	})
}

// Fail returns a lambda that always fails with err.
func Fail(name string, err error) *runnable.Lambda {
	l, _ := runnable.NewLambda(name, func(context.Context, any) (any, error) {
		return nil, err
	})
	return l
}

// Chunks returns a generator emitting chunks in order.
func Chunks(name string, chunks []any, opts ...runnable.Option) *runnable.Generator {
	return runnable.NewGenerator(name, func(_ context.Context, _ any, emit runnable.Emit) error {
		for _, c := range chunks {
			if err := emit(c); err != nil {
				return err
			}
		}
		return nil
	}, opts...)
}
