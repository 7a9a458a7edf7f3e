package runnable_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/agentstation/runnable"
	"github.com/agentstation/runnable/internal/testutil"
)

func TestDescribe(t *testing.T) {
	par := runnable.MustParallel(map[string]any{
		"a": testutil.Double(),
		"b": testutil.Square(),
	})
	seq := runnable.MustPipe(testutil.AddOne(), par)

	g := runnable.Describe(seq)
	if n := len(g.Nodes); n != 5 {
		t.Fatalf("expected 5 nodes, got %d", n)
	}
	if d := g.Depth(); d != 3 {
		t.Errorf("expected depth 3, got %d", d)
	}
	if got := g.Steps(); !slices.Equal(got, []string{"add_one", "{a, b}"}) {
		t.Errorf("unexpected steps %v", got)
	}
	if n := g.Count(runnable.KindLambda); n != 3 {
		t.Errorf("expected 3 lambdas, got %d", n)
	}

	root := g.Nodes[g.Root]
	parNode := g.Nodes[root.Children[1]]
	var keys []string
	for _, c := range parNode.Children {
		keys = append(keys, g.Nodes[c].Key)
	}
	if !slices.Equal(keys, []string{"a", "b"}) {
		t.Errorf("expected branch keys [a b], got %v", keys)
	}
	if root.InputType != "int" {
		t.Errorf("expected int input, got %q", root.InputType)
	}

	out, err := g.YAML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"kind: sequence", "kind: parallel", "name: add_one"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("expected %q in\n%s", want, out)
		}
	}
}

func TestDescribeWrappers(t *testing.T) {
	b, err := runnable.Bind(testutil.Double(), runnable.Args{"k": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := runnable.WithRetry(b, runnable.DefaultRetryPolicy())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	g := runnable.Describe(r)
	var kinds []runnable.Kind
	for _, n := range g.Nodes {
		kinds = append(kinds, n.Kind)
	}
	want := []runnable.Kind{runnable.KindRetry, runnable.KindBinding, runnable.KindLambda}
	if !slices.Equal(kinds, want) {
		t.Errorf("expected %v, got %v", want, kinds)
	}
	if g.Nodes[1].Key != "retried" || g.Nodes[2].Key != "bound" {
		t.Errorf("unexpected keys %q %q", g.Nodes[1].Key, g.Nodes[2].Key)
	}
}
