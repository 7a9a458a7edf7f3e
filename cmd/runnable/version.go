package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Example: `  # Show version
  runnable version

  # Show version in JSON format
  runnable version --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.settings.Output != textFormat {
				return printValue(out, a.settings.Output, map[string]string{
					"version":   version,
					"commit":    commit,
					"buildDate": buildDate,
					"goVersion": goVersion,
				})
			}

			fmt.Fprintf(out, "runnable version %s\n", version)
			if version != "dev" {
				fmt.Fprintf(out, "  commit:     %s\n", commit)
				fmt.Fprintf(out, "  built:      %s\n", buildDate)
				fmt.Fprintf(out, "  go version: %s\n", goVersion)
			}
			return nil
		},
	}
}
