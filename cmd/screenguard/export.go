package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goodtune/screenguard/internal/usage"
	"github.com/spf13/cobra"
)

var (
	exportDays   int
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the daily history as CSV",
	Example: `  screenguard export --days 30 --output /tmp
  screenguard export --output - > report.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Days to export, at most usage.retention_days (defaults to usage.history_days)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", ".", "Directory for the report, or - for stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	days, err := historyWindow(exportDays, svc.cfg.Usage)
	if err != nil {
		return err
	}

	summaries, err := svc.history.Get(cmd.Context(), days)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if exportOutput == "-" {
		return usage.WriteCSV(os.Stdout, summaries)
	}

	path := filepath.Join(exportOutput, usage.ReportFileName(svc.clock.Now()))
	if err := writeReport(path, func(w io.Writer) error { return usage.WriteCSV(w, summaries) }); err != nil {
		return err
	}

	fmt.Printf("Exported %d day(s) to %s\n", len(summaries), path)
	return nil
}

// writeReport creates path, refusing to overwrite, and removes it again if
// writing fails so no truncated report is left behind.
func writeReport(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	err = write(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
