package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/timecalc"
)

var totalCmd = &cobra.Command{
	Use:   "total <slug>",
	Short: "Show the total completed time of a project",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runTotal,
}

func runTotal(cmd *cobra.Command, args []string) error {
	slug := args[0]
	entries, err := current.log.All(cmd.Context(), slug)
	if err != nil {
		return err
	}
	// Strict mode rejects out-of-sequence logs before totalling.
	if _, err := current.tracker.Check(slug, entries); err != nil {
		return err
	}

	sum := timecalc.Total(entries)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Total time for %q: %s (%s)\n",
		slug, timecalc.FormatDuration(sum.Seconds), timecalc.FormatDurationHHMMSS(sum.Seconds))
	if sum.OpenSince != nil {
		fmt.Fprintln(out, styleHint.Render(fmt.Sprintf("Session running since %s is not included.", formatTimestamp(*sum.OpenSince))))
	}
	return nil
}
