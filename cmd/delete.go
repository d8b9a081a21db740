package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/guard"
)

var (
	deleteForce     bool
	deleteTimestamp int64
	deleteAll       bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete projects or time entries",
}

var deleteProjectCmd = &cobra.Command{
	Use:   "project <slug>",
	Short: "Delete a project and all of its entries",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runDeleteProject,
}

var deleteTimesCmd = &cobra.Command{
	Use:   "times <slug>",
	Short: "Delete entries by timestamp, or all entries with --all",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runDeleteTimes,
}

func init() {
	deleteProjectCmd.Flags().BoolVar(&deleteForce, "force", false, "Required: confirm that the project and its entries go away")

	deleteTimesCmd.Flags().Int64Var(&deleteTimestamp, "timestamp", 0, "Delete the entries at this Unix timestamp")
	deleteTimesCmd.Flags().BoolVar(&deleteAll, "all", false, "Delete every entry of the project (asks for confirmation)")

	deleteCmd.AddCommand(deleteProjectCmd)
	deleteCmd.AddCommand(deleteTimesCmd)
}

func newGuard(cmd *cobra.Command) *guard.Guard {
	return guard.New(&guard.LinePrompter{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()})
}

func runDeleteProject(cmd *cobra.Command, args []string) error {
	slug := args[0]
	ctx := cmd.Context()
	if _, err := current.registry.Get(ctx, slug); err != nil {
		return err
	}

	prompt := styleWarning.Render(fmt.Sprintf("This deletes project %q and ALL of its time entries.", slug))
	approval, err := newGuard(cmd).Authorize(deleteForce, prompt)
	if err != nil {
		if errors.Is(err, guard.ErrIntentRequired) {
			return usageErrorf("deleting a project requires --force: %w", err)
		}
		return err
	}
	if err := current.registry.Remove(ctx, slug, approval); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s project %q\n", styleSuccess.Render("Deleted"), slug)
	return nil
}

func runDeleteTimes(cmd *cobra.Command, args []string) error {
	slug := args[0]
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	byTimestamp := cmd.Flags().Changed("timestamp")
	if byTimestamp == deleteAll {
		return usageErrorf("pass exactly one of --timestamp or --all")
	}
	if byTimestamp {
		removed, err := current.log.DeleteByTimestamp(ctx, slug, deleteTimestamp)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %d entr%s at %s from %q\n",
			styleSuccess.Render("Deleted"), removed, plural(removed, "y", "ies"), formatTimestamp(deleteTimestamp), slug)
		return nil
	}

	entries, err := current.log.All(ctx, slug)
	if err != nil {
		return err
	}
	prompt := styleWarning.Render(fmt.Sprintf("This deletes all %d time entries of %q.", len(entries), slug))
	approval, err := newGuard(cmd).Authorize(deleteAll, prompt)
	if err != nil {
		return err
	}
	if err := current.log.DeleteAll(ctx, slug, approval); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s all entries of %q\n", styleSuccess.Render("Deleted"), slug)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
