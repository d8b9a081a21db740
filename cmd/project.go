package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

var (
	projectName        string
	projectDescription string
	projectNewSlug     string
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <slug>",
	Short: "Add a project, replacing one with the same slug",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runProjectAdd,
}

var projectEditCmd = &cobra.Command{
	Use:   "edit <slug>",
	Short: "Change a project's name, description or slug",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runProjectEdit,
}

func init() {
	projectAddCmd.Flags().StringVar(&projectName, "name", "", "Display name (default: the slug)")
	projectAddCmd.Flags().StringVar(&projectDescription, "description", "", "Description (default: \"Project <slug>\")")

	projectEditCmd.Flags().StringVar(&projectName, "name", "", "New display name")
	projectEditCmd.Flags().StringVar(&projectDescription, "description", "", "New description")
	projectEditCmd.Flags().StringVar(&projectNewSlug, "new-slug", "", "New slug; entries move with the project")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectEditCmd)
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	p, err := current.registry.Add(cmd.Context(), model.Project{
		Slug:        args[0],
		Name:        projectName,
		Description: projectDescription,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s project %q (%s)\n", styleSuccess.Render("Added"), p.Slug, p.Name)
	return nil
}

func runProjectEdit(cmd *cobra.Command, args []string) error {
	if projectName == "" && projectDescription == "" && projectNewSlug == "" {
		return usageErrorf("nothing to change: pass --name, --description or --new-slug")
	}
	p, err := current.registry.Update(cmd.Context(), args[0], model.Project{
		Slug:        projectNewSlug,
		Name:        projectName,
		Description: projectDescription,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s project %q (%s)\n", styleSuccess.Render("Updated"), p.Slug, p.Name)
	return nil
}
