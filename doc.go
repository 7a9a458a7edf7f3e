/*
Package runnable provides a uniform protocol for composable units of work.

Every node implements Runnable and can be invoked, batched or streamed the
same way, whether it wraps a plain function, a generator, a fixed value or a
whole composed pipeline. Nodes are immutable and safe for concurrent use;
the state of a single call lives in its context and is dropped when the call
returns.

Key features:
  - Sequences, parallel maps, per-element mapping and bindings
  - Invoke, Batch, Stream and their async counterparts on every node
  - Streaming through bounded channels, fused across transformer steps
  - A persistent Config bag propagated top-down with child overlays winning
  - Errors annotated with the structural position of the failing step

Basic usage:

	double := runnable.Fn("double", func(ctx context.Context, n int) (int, error) {
		return n * 2, nil
	})
	addOne := runnable.Fn("add_one", func(ctx context.Context, n int) (int, error) {
		return n + 1, nil
	})
	stringify := runnable.Fn("stringify", func(ctx context.Context, n int) (string, error) {
		return strconv.Itoa(n), nil
	})

	pipeline, err := runnable.Pipe(double, addOne, stringify)
	out, err := pipeline.Invoke(ctx, 5, runnable.Config{}) // "11"

Parallel branches:

	both, err := runnable.NewParallel(map[string]any{
		"double": double,
		"square": square,
	})
	out, err := both.Invoke(ctx, 4, runnable.Config{}) // map[double:8 square:16]

Streaming:

	letters := runnable.NewGenerator("letters", func(ctx context.Context, _ any, emit runnable.Emit) error {
		for _, s := range []string{"a", "b", "c"} {
			if err := emit(s); err != nil {
				return err
			}
		}
		return nil
	}, runnable.WithMerger(runnable.Add))

	st, err := letters.Stream(ctx, nil, runnable.Config{})
	for chunk, err := range st.Chunks(ctx) {
		// "a", "b", "c"
	}

Configuration:

	cfg := runnable.NewConfig().
		WithMaxConcurrency(4).
		WithTags("ingest").
		WithCallbacks(runnable.LogHandler(logger, false))

	outs, err := pipeline.Batch(ctx, []any{1, 2, 3}, cfg)

Generators combine their chunks with LastValue by default, so Invoke returns
only the final chunk. Pass WithMerger(Add) to concatenate strings, append
slices or merge partial maps instead.
*/
package runnable
