package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push changes made in local mode to the store",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	result, err := current.client.Sync(cmd.Context())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sync complete: %d pushed, %d deleted, %d errors\n",
		result.Pushed, result.Deleted, result.Errors)
	if err != nil {
		return err
	}
	if result.Pushed == 0 && result.Deleted == 0 {
		fmt.Fprintln(out, styleHint.Render("Nothing to push."))
	}
	return nil
}
