package runnable

import (
	"reflect"

	"github.com/goccy/go-yaml"
)

// GraphNode is one node of a described pipeline. Children hold indexes
// into Graph.Nodes.
type GraphNode struct {
	ID         int    `yaml:"id"`
	Name       string `yaml:"name"`
	Kind       Kind   `yaml:"kind"`
	Key        string `yaml:"key,omitempty"`
	InputType  string `yaml:"input,omitempty"`
	OutputType string `yaml:"output,omitempty"`
	Children   []int  `yaml:"children,omitempty"`
}

// Graph is a read-only arena view of a pipeline's structure. It is meant
// for display and structural checks, not for saving pipelines.
type Graph struct {
	Nodes []GraphNode `yaml:"nodes"`
	Root  int         `yaml:"root"`
}

// Describe walks r and its children into a Graph.
func Describe(r Runnable) *Graph {
	g := &Graph{}
	g.Root = g.add(r, "")
	return g
}

func (g *Graph) add(r Runnable, key string) int {
	id := len(g.Nodes)
	g.Nodes = append(g.Nodes, GraphNode{
		ID:         id,
		Name:       r.Name(),
		Kind:       r.Kind(),
		Key:        key,
		InputType:  typeName(r.InputType()),
		OutputType: typeName(r.OutputType()),
	})
	if p, ok := r.(Parent); ok {
		for _, c := range p.Children() {
			child := g.add(c.Node, c.Key)
			g.Nodes[id].Children = append(g.Nodes[id].Children, child)
		}
	}
	return id
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (g *Graph) Depth() int {
	if len(g.Nodes) == 0 {
		return 0
	}
	var depth func(i int) int
	depth = func(i int) int {
		best := 0
		for _, c := range g.Nodes[i].Children {
			best = max(best, depth(c))
		}
		return best + 1
	}
	return depth(g.Root)
}

// Steps returns the names of the root's direct children, or the root's own
// name when it has none.
func (g *Graph) Steps() []string {
	if len(g.Nodes) == 0 {
		return nil
	}
	root := g.Nodes[g.Root]
	if len(root.Children) == 0 {
		return []string{root.Name}
	}
	out := make([]string, len(root.Children))
	for i, c := range root.Children {
		out[i] = g.Nodes[c].Name
	}
	return out
}

// Count returns the number of nodes of kind k.
func (g *Graph) Count(k Kind) int {
	n := 0
	for _, node := range g.Nodes {
		if node.Kind == k {
			n++
		}
	}
	return n
}

// YAML renders the graph.
func (g *Graph) YAML() ([]byte, error) {
	return yaml.Marshal(g)
}
