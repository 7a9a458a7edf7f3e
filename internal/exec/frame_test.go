package exec

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestEnterLinksFrames(t *testing.T) {
	ctx := context.Background()
	if !IsRoot(ctx) {
		t.Fatal("IsRoot() = false for empty context")
	}

	ctx, root := Enter(ctx, "pipeline", "sequence")
	if root.ParentID != uuid.Nil {
		t.Errorf("root ParentID = %v, want nil UUID", root.ParentID)
	}
	if root.Depth != 0 {
		t.Errorf("root Depth = %d, want 0", root.Depth)
	}

	childCtx, child := Enter(ctx, "double", "lambda")
	if child.ParentID != root.ID {
		t.Errorf("child ParentID = %v, want %v", child.ParentID, root.ID)
	}
	if child.Depth != 1 {
		t.Errorf("child Depth = %d, want 1", child.Depth)
	}
	if got, want := child.Path(), []string{"pipeline", "double"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Path() = %v, want %v", got, want)
	}

	f, ok := FromContext(childCtx)
	if !ok || f != child {
		t.Errorf("FromContext() = %v, %v; want child frame", f, ok)
	}

	// Siblings do not see each other's path entries.
	_, sibling := Enter(ctx, "square", "lambda")
	if got, want := sibling.Path(), []string{"pipeline", "square"}; !reflect.DeepEqual(got, want) {
		t.Errorf("sibling Path() = %v, want %v", got, want)
	}
}

func TestAsyncInherited(t *testing.T) {
	ctx := WithAsync(context.Background())
	ctx, parent := Enter(ctx, "outer", "sequence")
	_, child := Enter(ctx, "inner", "lambda")

	if !parent.Async || !child.Async {
		t.Errorf("Async = %v/%v, want true/true", parent.Async, child.Async)
	}

	_, syncFrame := Enter(context.Background(), "plain", "lambda")
	if syncFrame.Async {
		t.Error("frame without WithAsync reported async")
	}
}

func TestWithRoot(t *testing.T) {
	ctx := WithRoot(context.Background())
	if IsRoot(ctx) {
		t.Error("IsRoot() = true after WithRoot")
	}
	if _, ok := FromContext(ctx); ok {
		t.Error("WithRoot must not create a frame")
	}
}
