package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	projects, err := current.registry.List(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found.")
		fmt.Fprintln(out, styleHint.Render("Add one with: timetracker project add <slug>"))
		return nil
	}

	t := newTable("Slug", "Name", "Description")
	for _, p := range projects {
		t.Row(p.Slug, p.Name, p.Description)
	}
	fmt.Fprintln(out, t.Render())
	return nil
}
