package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

var timesFormat string

var timesCmd = &cobra.Command{
	Use:   "times <slug>",
	Short: "Show the start/end entries of a project",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runTimes,
}

func init() {
	timesCmd.Flags().StringVar(&timesFormat, "format", "table", "Output format: table, csv, json")
}

func runTimes(cmd *cobra.Command, args []string) error {
	switch timesFormat {
	case "table", "csv", "json":
	default:
		return usageErrorf("unknown format %q: want table, csv or json", timesFormat)
	}

	entries, err := current.log.All(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch timesFormat {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
	case "csv":
		return printCSV(out, entries)
	default:
		if len(entries) == 0 {
			fmt.Fprintf(out, "No entries for %q.\n", args[0])
			return nil
		}
		t := newTable("Timestamp", "Time", "Type", "Description")
		for _, e := range entries {
			t.Row(strconv.FormatInt(e.Timestamp, 10), formatTimestamp(e.Timestamp), e.Type.String(), description(e))
		}
		fmt.Fprintln(out, t.Render())
	}
	return nil
}

func printCSV(w io.Writer, entries []model.TimeEntry) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"timestamp", "time", "type", "description"})
	for _, e := range entries {
		_ = cw.Write([]string{
			strconv.FormatInt(e.Timestamp, 10),
			formatTimestamp(e.Timestamp),
			e.Type.String(),
			description(e),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	return nil
}

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).Format(timeLayout)
}

func description(e model.TimeEntry) string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}
