package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentstation/runnable/builtin/script"
)

func newScriptsCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List the Lua scripts in a directory",
		Long: `Scripts lists the Lua scripts a run can use with "script:<name>" steps.
A script names itself with header comments:

  -- @name: tokenize
  -- @description: Splits text into words
  -- @stream: true

  function exec(input) ... end`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				return errors.New("--scripts is required")
			}
			path, err := expandPath(dir)
			if err != nil {
				return fmt.Errorf("expand path: %w", err)
			}
			manager := script.NewManager(path)
			if err := manager.Discover(); err != nil {
				a.logger.Error(cmd.Context(), "some scripts failed to load", "error", err)
			}

			out := cmd.OutOrStdout()
			scripts := manager.List()
			if a.settings.Output != textFormat {
				rows := make([]map[string]any, len(scripts))
				for i, s := range scripts {
					rows[i] = map[string]any{
						"name":        s.Name,
						"path":        s.Path,
						"description": s.Description,
						"version":     s.Version,
						"stream":      s.Stream,
					}
				}
				return printValue(out, a.settings.Output, rows)
			}

			if len(scripts) == 0 {
				fmt.Fprintf(out, "No scripts found in %s\n", path)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range scripts {
				desc := s.Description
				if desc == "" {
					desc = "(no description)"
				}
				mode := "invoke"
				if s.Stream {
					mode = "stream"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, mode, desc)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "scripts", "", "Directory of Lua scripts")
	return cmd
}
