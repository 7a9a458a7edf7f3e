package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentstation/runnable"
)

func newDescribeCmd(a *app) *cobra.Command {
	f := &pipelineFlags{}
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Show the structure of a pipeline without running it",
		Example: `  runnable describe -s 'jsonpath:$.items' -s 'js:function exec(xs) { return xs.length }'
  runnable describe -s 'delay:10ms' --retries 2 --output yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pipeline, err := f.build(cmd.Context(), a)
			if err != nil {
				return err
			}
			g := runnable.Describe(pipeline)
			out := cmd.OutOrStdout()
			switch a.settings.Output {
			case yamlFormat:
				data, err := g.YAML()
				if err != nil {
					return fmt.Errorf("failed to marshal graph: %w", err)
				}
				_, err = out.Write(data)
				return err
			case jsonFormat:
				_, err := fmt.Fprintln(out, oj.JSON(g, &oj.Options{Indent: 2, Sort: true, UseTags: true}))
				return err
			default:
				writeTree(out, g, g.Root, 0)
				_, err := fmt.Fprintf(out, "\nDepth: %d, nodes: %d\n", g.Depth(), len(g.Nodes))
				return err
			}
		},
	}
	f.register(cmd)
	return cmd
}

// writeTree prints node id of g and its children, indented by level.
func writeTree(w io.Writer, g *runnable.Graph, id, level int) {
	n := g.Nodes[id]
	line := strings.Repeat("  ", level)
	if n.Key != "" {
		line += n.Key + ": "
	}
	line += fmt.Sprintf("%s (%s)", n.Name, n.Kind)
	if n.InputType != "" || n.OutputType != "" {
		line += fmt.Sprintf(" %s -> %s", orAny(n.InputType), orAny(n.OutputType))
	}
	fmt.Fprintln(w, line)
	for _, c := range n.Children {
		writeTree(w, g, c, level+1)
	}
}

func orAny(t string) string {
	if t == "" {
		return "any"
	}
	return t
}
