package testutil

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/agentstation/runnable"
)

// Assert provides test assertions.
type Assert struct {
	t *testing.T
}

// NewAssert creates a new assert helper.
func NewAssert(t *testing.T) *Assert {
	return &Assert{t: t}
}

// Equal asserts that two values are equal.
func (a *Assert) Equal(expected, actual any, msgAndArgs ...any) {
	a.t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		a.fail(fmt.Sprintf("Expected: %#v\nActual: %#v", expected, actual), msgAndArgs...)
	}
}

// True asserts that a value is true.
func (a *Assert) True(value bool, msgAndArgs ...any) {
	a.t.Helper()
	if !value {
		a.fail("Expected true, but got false", msgAndArgs...)
	}
}

// False asserts that a value is false.
func (a *Assert) False(value bool, msgAndArgs ...any) {
	a.t.Helper()
	if value {
		a.fail("Expected false, but got true", msgAndArgs...)
	}
}

// Error asserts that an error occurred.
func (a *Assert) Error(err error, msgAndArgs ...any) {
	a.t.Helper()
	if err == nil {
		a.fail("Expected error, but got nil", msgAndArgs...)
	}
}

// NoError asserts that no error occurred.
func (a *Assert) NoError(err error, msgAndArgs ...any) {
	a.t.Helper()
	if err != nil {
		a.fail(fmt.Sprintf("Expected no error, but got: %v", err), msgAndArgs...)
	}
}

// ErrorIs asserts that err matches target.
func (a *Assert) ErrorIs(err, target error, msgAndArgs ...any) {
	a.t.Helper()
	if !errors.Is(err, target) {
		a.fail(fmt.Sprintf("Expected error matching %v, but got: %v", target, err), msgAndArgs...)
	}
}

// Contains asserts that a string contains a substring.
func (a *Assert) Contains(s, substr string, msgAndArgs ...any) {
	a.t.Helper()
	if !strings.Contains(s, substr) {
		a.fail(fmt.Sprintf("Expected %q to contain %q", s, substr), msgAndArgs...)
	}
}

// Len asserts the length of a collection.
func (a *Assert) Len(collection any, length int, msgAndArgs ...any) {
	a.t.Helper()
	actual := reflect.ValueOf(collection).Len()
	if actual != length {
		a.fail(fmt.Sprintf("Expected length %d, but got %d", length, actual), msgAndArgs...)
	}
}

// Eventually asserts that a condition becomes true within a timeout.
func (a *Assert) Eventually(condition func() bool, timeout time.Duration, msgAndArgs ...any) {
	a.t.Helper()

	deadline := time.Now().Add(timeout)
	interval := max(timeout/100, time.Millisecond)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(interval)
	}
	a.fail("Condition did not become true within timeout", msgAndArgs...)
}

func (a *Assert) fail(message string, msgAndArgs ...any) {
	if len(msgAndArgs) > 0 {
		if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
			message = fmt.Sprintf(format, msgAndArgs[1:]...) + "\n" + message
		} else if len(msgAndArgs) == 1 {
			message = fmt.Sprintf("%v\n%s", msgAndArgs[0], message)
		}
	}
	a.t.Fatal(message)
}

// RunAssert provides runnable-specific assertions.
type RunAssert struct {
	*Assert
}

// NewRunAssert creates runnable-specific assertions.
func NewRunAssert(t *testing.T) *RunAssert {
	return &RunAssert{Assert: NewAssert(t)}
}

// Invokes asserts that r.Invoke succeeds and returns its output.
func (ra *RunAssert) Invokes(r runnable.Runnable, input any, cfg runnable.Config) any {
	ra.t.Helper()
	out, err := r.Invoke(context.Background(), input, cfg)
	ra.NoError(err, "Invoke of %s failed", r.Name())
	return out
}

// Fails asserts that r.Invoke fails and returns the error.
func (ra *RunAssert) Fails(r runnable.Runnable, input any, cfg runnable.Config) error {
	ra.t.Helper()
	_, err := r.Invoke(context.Background(), input, cfg)
	ra.Error(err, "Expected %s to fail", r.Name())
	return err
}

// Streams asserts that r.Stream succeeds and returns every chunk.
func (ra *RunAssert) Streams(r runnable.Runnable, input any, cfg runnable.Config) []any {
	ra.t.Helper()
	ctx := context.Background()
	st, err := r.Stream(ctx, input, cfg)
	ra.NoError(err, "Stream of %s failed to open", r.Name())
	chunks, err := runnable.CollectAll(ctx, st)
	ra.NoError(err, "Stream of %s failed", r.Name())
	return chunks
}

// StreamMatchesInvoke asserts that merging the chunks of r.Stream with
// merge equals r.Invoke on the same input. A nil merge uses the node's own.
func (ra *RunAssert) StreamMatchesInvoke(r runnable.Runnable, input any, merge runnable.Merger) {
	ra.t.Helper()
	ctx := context.Background()
	if merge == nil {
		merge = runnable.MergerOf(r)
	}

	want, err := r.Invoke(ctx, input, runnable.Config{})
	ra.NoError(err, "Invoke of %s failed", r.Name())

	st, err := r.Stream(ctx, input, runnable.Config{})
	ra.NoError(err, "Stream of %s failed to open", r.Name())
	got, err := runnable.Collect(ctx, st, merge)
	ra.NoError(err, "Stream of %s failed", r.Name())

	ra.Equal(want, got, "stream of %s does not match invoke", r.Name())
}
