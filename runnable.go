package runnable

import (
	"context"
	"reflect"

	"github.com/agentstation/runnable/internal/exec"
)

// Kind tags the variant of a Runnable.
type Kind string

const (
	KindSequence  Kind = "sequence"
	KindParallel  Kind = "parallel"
	KindBinding   Kind = "binding"
	KindLambda    Kind = "lambda"
	KindEach      Kind = "each"
	KindGenerator Kind = "generator"
	KindLeaf      Kind = "leaf"
	KindRetry     Kind = "retry"
	KindFallbacks Kind = "fallbacks"
)

// Mode is the execution mode a call runs in.
type Mode string

const (
	ModeSync   Mode = "sync"
	ModeAsync  Mode = "async"
	ModeStream Mode = "stream"
)

// Runnable is a composable unit of work that can be invoked, batched or
// streamed through one contract.
//
// Implementations are immutable once built and safe for concurrent use.
// Batch returns exactly one output per input, in input order. Combining the
// chunks of Stream with the node's merger yields the value Invoke returns.
type Runnable interface {
	Name() string
	Kind() Kind

	Invoke(ctx context.Context, input any, cfg Config) (any, error)
	Batch(ctx context.Context, inputs []any, cfg Config) ([]any, error)
	Stream(ctx context.Context, input any, cfg Config) (*Stream, error)

	// InputType and OutputType return nil when the type is not known.
	InputType() reflect.Type
	OutputType() reflect.Type
}

// Transformer is implemented by nodes that can consume a chunk stream and
// produce a chunk stream without buffering the whole input.
type Transformer interface {
	Transform(ctx context.Context, in *Stream, cfg Config) (*Stream, error)
}

// AsyncInvoker is implemented by nodes with a native asynchronous path.
type AsyncInvoker interface {
	InvokeAsync(ctx context.Context, input any, cfg Config) *Future
}

// Parent is implemented by composite nodes.
type Parent interface {
	Children() []Child
}

// Child is one structural child of a composite node. Key is the step index,
// branch key or role the child plays in its parent.
type Child struct {
	Key  string
	Node Runnable
}

// base carries the identity shared by every node.
type base struct {
	name    string
	inType  reflect.Type
	outType reflect.Type
}

func (b base) Name() string             { return b.name }
func (b base) InputType() reflect.Type  { return b.inType }
func (b base) OutputType() reflect.Type { return b.outType }

// isTypeCompatible reports whether a value of type out can be passed where in
// is expected. Unknown types are always compatible.
func isTypeCompatible(out, in reflect.Type) bool {
	if isAnyType(out) || isAnyType(in) {
		return true
	}
	if out == in {
		return true
	}
	if in.Kind() == reflect.Interface {
		return out.Implements(in)
	}
	// An interface output may still hold a compatible dynamic value.
	if out.Kind() == reflect.Interface {
		return true
	}
	return out.AssignableTo(in)
}

func isAnyType(t reflect.Type) bool {
	if t == nil {
		return true
	}
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// checkInput verifies a runtime value against a node's declared input type.
func checkInput(r Runnable, input any) error {
	want := r.InputType()
	if isAnyType(want) {
		return nil
	}
	if input == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return nil
		}
		return typeMismatch(r.Name(), want, nil)
	}
	got := reflect.TypeOf(input)
	if got.AssignableTo(want) {
		return nil
	}
	return typeMismatch(r.Name(), want, got)
}

func isAsync(ctx context.Context) bool { return exec.IsAsync(ctx) }
