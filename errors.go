package runnable

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	// ErrComposition is matched by every CompositionError.
	ErrComposition = errors.New("runnable: invalid composition")

	// ErrExecution is matched by every ExecutionError.
	ErrExecution = errors.New("runnable: execution failed")

	// ErrUnsupportedMode is matched by every UnsupportedModeError.
	ErrUnsupportedMode = errors.New("runnable: unsupported mode")

	// ErrCancelled is matched by every CancellationError.
	ErrCancelled = errors.New("runnable: cancelled")

	// ErrTypeMismatch is returned when a value does not have the type a node expects.
	ErrTypeMismatch = errors.New("runnable: type mismatch")

	// ErrRecursionLimit is returned when nested runnables exceed the recursion limit.
	ErrRecursionLimit = errors.New("runnable: recursion limit reached")

	// ErrStreamClosed is returned by Next after Close.
	ErrStreamClosed = errors.New("runnable: stream closed")
)

// CompositionError reports an invalid pipeline construction.
type CompositionError struct {
	Op     string
	Reason string
	Err    error
}

func (e *CompositionError) Error() string {
	var b strings.Builder
	b.WriteString("runnable: ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CompositionError) Unwrap() error { return e.Err }

func (e *CompositionError) Is(target error) bool { return target == ErrComposition }

func compositionErr(op, format string, args ...any) error {
	return &CompositionError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps the failure of a node during invoke, batch or stream.
// Path lists structural positions from the outermost composite inward,
// e.g. ["step:1", "branch:b"].
type ExecutionError struct {
	Name string
	Path []string
	Err  error
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("runnable: ")
	if len(e.Path) > 0 {
		b.WriteString(strings.Join(e.Path, " > "))
		b.WriteString(" ")
	}
	if e.Name != "" {
		b.WriteString("(")
		b.WriteString(e.Name)
		b.WriteString(") ")
	}
	b.WriteString("failed: ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// Position returns the outermost structural position, or "" when none is recorded.
func (e *ExecutionError) Position() string {
	if len(e.Path) == 0 {
		return ""
	}
	return e.Path[0]
}

// UnsupportedModeError reports that a leaf lacks the capability a call requires.
type UnsupportedModeError struct {
	Name string
	Mode Mode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("runnable: %s does not support %s mode", e.Name, e.Mode)
}

func (e *UnsupportedModeError) Is(target error) bool { return target == ErrUnsupportedMode }

// CancellationError reports an invocation aborted through its context.
type CancellationError struct {
	Name string
	Path []string
	Err  error
}

func (e *CancellationError) Error() string {
	where := e.Name
	if len(e.Path) > 0 {
		where = strings.Join(e.Path, " > ") + " (" + e.Name + ")"
	}
	return fmt.Sprintf("runnable: %s cancelled: %v", where, e.Err)
}

func (e *CancellationError) Unwrap() error { return e.Err }

func (e *CancellationError) Is(target error) bool { return target == ErrCancelled }

// WrapError classifies err, a failure of the node called name: context
// errors become a CancellationError and any other unclassified error an
// ExecutionError. Decorators that fail outside the node's own run use it
// so their callers see the same error types the node would return.
func WrapError(name string, err error) error { return wrapErr(name, err) }

// wrapErr converts a raw failure from node name into the error taxonomy.
// Errors that already are taxonomy errors pass through unchanged.
func wrapErr(name string, err error) error {
	switch err.(type) {
	case nil:
		return nil
	case *ExecutionError, *CancellationError, *UnsupportedModeError, *CompositionError:
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CancellationError{Name: name, Err: err}
	}
	return &ExecutionError{Name: name, Err: err}
}

// annotate prefixes the structural position of a failing child to err.
func annotate(pos, name string, err error) error {
	switch e := err.(type) {
	case nil:
		return nil
	case *ExecutionError:
		return &ExecutionError{Name: e.Name, Path: prepend(pos, e.Path), Err: e.Err}
	case *CancellationError:
		return &CancellationError{Name: e.Name, Path: prepend(pos, e.Path), Err: e.Err}
	}
	return &ExecutionError{Name: name, Path: []string{pos}, Err: err}
}

func prepend(pos string, path []string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, pos)
	return append(out, path...)
}

func typeMismatch(name string, want, got any) error {
	return fmt.Errorf("%w: %s expects %v, got %v", ErrTypeMismatch, name, want, got)
}

func stepPos(i int) string { return fmt.Sprintf("step:%d", i) }

func branchPos(key string) string { return "branch:" + key }

func itemPos(i int) string { return fmt.Sprintf("item:%d", i) }
