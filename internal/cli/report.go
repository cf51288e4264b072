package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stravasync/stravasync/internal/report"
	"github.com/stravasync/stravasync/internal/store"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the kudos report as CSV",
	Long: `Export a CSV listing every kudos giver with the activity they
applauded, most recent activity first.

Example:
  stravasync report
  stravasync report --output /tmp/kudos.csv`,
	RunE: runReport,
}

var reportFlags struct {
	Output string
}

func init() {
	reportCmd.Flags().StringVarP(&reportFlags.Output, "output", "o", "", "Output CSV path (overrides config)")

	RootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	output := cfg.Report.OutputCSV
	if reportFlags.Output != "" {
		output = reportFlags.Output
	}

	st, err := store.NewSQLiteStore(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := report.NewWriter(st, logger).WriteCSV(context.Background(), output)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows to %s\n", rows, output)
	return nil
}
