package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/session"
	"github.com/Tiliavir/kv-time-tracker/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status <slug>",
	Short: "Show whether a project is being tracked",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	slug := args[0]
	r, err := current.tracker.Status(cmd.Context(), slug)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if r.State != session.Running {
		fmt.Fprintf(out, "%s %q is idle.\n", styleLabel.Render("Status:"), slug)
		return nil
	}
	elapsed := time.Now().Unix() - *r.Since
	if elapsed < 0 {
		elapsed = 0
	}
	fmt.Fprintf(out, "%s %q is running.\n", styleLabel.Render("Status:"), slug)
	fmt.Fprintf(out, "  Since: %s\n", formatTimestamp(*r.Since))
	fmt.Fprintf(out, "  Elapsed: %s\n", timecalc.FormatDurationHHMMSS(elapsed))
	return nil
}
