package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

var startDescription string

var startCmd = &cobra.Command{
	Use:   "start <slug>",
	Short: "Start tracking time on a project",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startDescription, "description", "d", "", "What you are working on")
}

func runStart(cmd *cobra.Command, args []string) error {
	slug := args[0]
	ctx := cmd.Context()

	if _, err := current.registry.Get(ctx, slug); errors.Is(err, model.ErrNotFound) {
		current.logger.Warn("project is not registered; add it with 'timetracker project add'", "project", slug)
	} else if err != nil {
		return err
	}

	entry, err := current.tracker.Start(ctx, slug, optional(startDescription))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s tracking %q at %s\n",
		styleSuccess.Render("Started"), slug, time.Unix(entry.Timestamp, 0).Format("15:04:05"))
	return nil
}
