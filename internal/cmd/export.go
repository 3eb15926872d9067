package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/export"
)

// newExportCommand creates the 'fragility export' command
func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		format string
		output string
		limit  int
		since  string
		until  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export report history to JSON, CSV or XLSX",
		Long: `Export stored report runs for external analysis or backup.

If no output file is specified, data is written to stdout (json and csv
only). File output is written atomically under a lock so concurrent
exports never interleave.

Examples:
  # Export the last 100 runs as CSV
  fragility export --format csv --limit 100 --output runs.csv

  # Export March as a spreadsheet
  fragility export --format xlsx --since 2024-03-01 --until 2024-03-31 --output march.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if f == export.FormatXLSX && output == "" {
				return fmt.Errorf("xlsx export requires --output")
			}

			query, err := historyQuery(limit, since, until)
			if err != nil {
				return err
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.store.ListReports(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}

			if output == "" {
				return export.Write(cmd.OutOrStdout(), f, records)
			}
			if err := export.WriteFile(output, f, records); err != nil {
				return err
			}
			a.log.LogInfo(fmt.Sprintf("Exported %d runs to %s", len(records), output))
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format (json|csv|xlsx)")
	cmd.Flags().StringVar(&output, "output", "", "Output file path (stdout if not specified)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of runs (0 = all)")
	cmd.Flags().StringVar(&since, "since", "", "Only runs created on or after this date")
	cmd.Flags().StringVar(&until, "until", "", "Only runs created on or before this date")

	return cmd
}
