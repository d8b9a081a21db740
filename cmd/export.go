package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/kv-time-tracker/internal/export"
)

var (
	exportDir      string
	exportTemplate string
	exportFormat   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every stored key to its own file",
	Long: `Write every stored key to its own pretty-printed file.

The file name template accepts {key-name}, {project-name} and {timestamp}.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "output-dir", "", "Target directory (default from config, \"exports\")")
	exportCmd.Flags().StringVar(&exportTemplate, "template", "", "File name template (default \"{key-name}.<format>\")")
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: json, yaml (default from config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg := current.cfg.Export
	dir := firstNonEmpty(exportDir, cfg.Dir, "exports")
	format, err := export.ParseFormat(firstNonEmpty(exportFormat, cfg.Format))
	if err != nil {
		return usageError{err}
	}

	exporter := export.New(current.client, export.Options{
		Template: firstNonEmpty(exportTemplate, cfg.Template),
		Format:   format,
		Logger:   current.logger,
	})
	report, err := exporter.ExportAll(cmd.Context(), dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	keys := make([]string, 0, len(report.Succeeded))
	for key := range report.Succeeded {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s %s → %s\n", styleSuccess.Render("✓"), key, report.Succeeded[key])
	}
	failed := make([]string, 0, len(report.Failed))
	for key := range report.Failed {
		failed = append(failed, key)
	}
	sort.Strings(failed)
	for _, key := range failed {
		fmt.Fprintf(out, "  %s %s: %v\n", styleError.Render("!"), key, report.Failed[key])
	}
	fmt.Fprintf(out, "Exported %d key(s) to %s", len(report.Succeeded), dir)
	if len(report.Failed) > 0 {
		fmt.Fprintf(out, ", %s", styleWarning.Render(fmt.Sprintf("%d failed", len(report.Failed))))
	}
	fmt.Fprintln(out)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
