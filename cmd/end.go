package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/timecalc"
)

var endDescription string

var endCmd = &cobra.Command{
	Use:   "end <slug>",
	Short: "Stop tracking time on a project",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runEnd,
}

func init() {
	endCmd.Flags().StringVarP(&endDescription, "description", "d", "", "Note for the end entry")
}

func runEnd(cmd *cobra.Command, args []string) error {
	slug := args[0]
	entry, since, err := current.tracker.End(cmd.Context(), slug, optional(endDescription))
	if err != nil {
		return err
	}
	elapsed := entry.Timestamp - since
	if elapsed < 0 {
		elapsed = 0
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s tracking %q. Elapsed: %s\n",
		styleSuccess.Render("Stopped"), slug, timecalc.FormatElapsed(elapsed))
	return nil
}
