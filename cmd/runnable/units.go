package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentstation/runnable/builtin"
)

func newUnitsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "units",
		Short: "List the builtin unit types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listUnits(cmd.OutOrStdout(), a.settings.Output, builtin.Default())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "info <type>",
		Short: "Show the config schema and examples of a unit type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, ok := builtin.Default().Get(args[0])
			if !ok {
				return fmt.Errorf("unit type %q not found", args[0])
			}
			return unitInfo(cmd.OutOrStdout(), a.settings.Output, b.Metadata())
		},
	})
	return cmd
}

func listUnits(w io.Writer, format string, registry *builtin.Registry) error {
	var units []builtin.UnitMetadata
	for _, typ := range registry.Types() {
		b, _ := registry.Get(typ)
		units = append(units, b.Metadata())
	}
	slices.SortStableFunc(units, func(x, y builtin.UnitMetadata) int {
		return strings.Compare(x.Category, y.Category)
	})

	switch format {
	case jsonFormat:
		_, err := fmt.Fprintln(w, oj.JSON(units, &oj.Options{Indent: 2, UseTags: true}))
		return err
	case yamlFormat:
		summary := make([]map[string]any, len(units))
		for i, u := range units {
			summary[i] = map[string]any{
				"type":        u.Type,
				"category":    u.Category,
				"description": u.Description,
			}
			if u.Shorthand != "" {
				summary[i]["shorthand"] = u.Shorthand
			}
		}
		data, err := yaml.Marshal(summary)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	category := ""
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, u := range units {
		if u.Category != category {
			category = u.Category
			fmt.Fprintf(tw, "\n%s:\n", strings.ToUpper(category[:1])+category[1:])
		}
		usage := u.Type
		if u.Shorthand != "" {
			usage += ":<" + u.Shorthand + ">"
		}
		fmt.Fprintf(tw, "  %s\t%s\n", usage, u.Description)
	}
	fmt.Fprintf(tw, "\nTotal: %d unit types\n", len(units))
	return tw.Flush()
}

func unitInfo(w io.Writer, format string, meta builtin.UnitMetadata) error {
	if format == jsonFormat {
		_, err := fmt.Fprintln(w, oj.JSON(meta, &oj.Options{Indent: 2, Sort: true, UseTags: true}))
		return err
	}

	fmt.Fprintf(w, "Unit Type: %s\n", meta.Type)
	fmt.Fprintf(w, "Category: %s\n", meta.Category)
	fmt.Fprintf(w, "Description: %s\n", meta.Description)
	if meta.Shorthand != "" {
		fmt.Fprintf(w, "Step: %s:<%s>\n", meta.Type, meta.Shorthand)
	}
	schema, err := yaml.Marshal(meta.ConfigSchema)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nConfiguration:\n%s", indent(string(schema), "  "))

	if len(meta.Examples) > 0 {
		fmt.Fprintln(w, "\nExamples:")
		for i, ex := range meta.Examples {
			fmt.Fprintf(w, "  %d. %s\n", i+1, ex.Name)
			config, err := yaml.Marshal(ex.Config)
			if err != nil {
				return err
			}
			fmt.Fprint(w, indent(string(config), "     "))
		}
	}
	return nil
}

func indent(s, prefix string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			b.WriteString(prefix + line + "\n")
		}
	}
	return b.String()
}
