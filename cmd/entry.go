package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	entryEditTimestamp   int64
	entryEditDescription string
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Manage single time entries",
}

var entryEditCmd = &cobra.Command{
	Use:   "edit <slug>",
	Short: "Change the description of the entries at a timestamp",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runEntryEdit,
}

func init() {
	entryEditCmd.Flags().Int64Var(&entryEditTimestamp, "timestamp", 0, "Unix timestamp of the entry (see 'times')")
	entryEditCmd.Flags().StringVar(&entryEditDescription, "description", "", "New description; empty clears it")
	entryCmd.AddCommand(entryEditCmd)
}

func runEntryEdit(cmd *cobra.Command, args []string) error {
	slug := args[0]
	if !cmd.Flags().Changed("timestamp") {
		return usageErrorf("--timestamp is required")
	}
	if err := current.log.UpdateDescription(cmd.Context(), slug, entryEditTimestamp, optional(entryEditDescription)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s entry at %s in %q\n",
		styleSuccess.Render("Updated"), formatTimestamp(entryEditTimestamp), slug)
	return nil
}
