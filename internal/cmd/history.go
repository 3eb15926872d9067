package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/report"
	"github.com/harrison/fragility/internal/store"
)

const timeDisplay = "2006-01-02 15:04:05"

// newHistoryCommand creates the 'fragility history' command
func newHistoryCommand(opts *globalOptions) *cobra.Command {
	var (
		limit   int
		since   string
		until   string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored report runs, most recent first",
		Long: `List stored report runs, most recent first.

Dates accept YYYY-MM-DD (whole day, inclusive) or RFC 3339 timestamps.

Examples:
  fragility history --limit 5
  fragility history --since 2024-03-01 --until 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.History.DefaultLimit
			}
			query, err := historyQuery(limit, since, until)
			if err != nil {
				return err
			}

			records, err := a.store.ListReports(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No report runs found.")
				return nil
			}
			printHistory(out, records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs (default: history.default_limit)")
	cmd.Flags().StringVar(&since, "since", "", "Only runs created on or after this date")
	cmd.Flags().StringVar(&until, "until", "", "Only runs created on or before this date")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print runs as JSON")

	return cmd
}

func printHistory(w io.Writer, records []models.ReportRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED (UTC)\tEVENTS\tSCORE\tSKIPPED TALLY\tSKIPPED EVENTS\tLABEL")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.UTC().Format(timeDisplay), r.TotalEvents,
			scoreCell(r), r.SkippedRows, r.SkippedEvents, colorLabel(r.FragilityLabel))
	}
	tw.Flush()
}

// newShowCommand creates the 'fragility show' command
func newShowCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored report run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.store.GetReport(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, store.ErrReportNotFound) {
					return fmt.Errorf("report %d not found", id)
				}
				return fmt.Errorf("get report: %w", err)
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "text":
				fmt.Fprint(out, record.Details)
			case "markdown", "md":
				md, err := report.RenderMarkdown(record)
				if err != nil {
					return err
				}
				fmt.Fprint(out, md)
			case "html":
				html, err := report.RenderHTML(record)
				if err != nil {
					return err
				}
				fmt.Fprint(out, html)
			case "json":
				return writeJSON(out, record)
			default:
				return fmt.Errorf("invalid format '%s': format must be 'text', 'markdown', 'html' or 'json'", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format (text|markdown|html|json)")

	return cmd
}

// newCompareCommand creates the 'fragility compare' command
func newCompareCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <id> <id>...",
		Short: "Compare stored report runs side by side",
		Long: `Compare two or more stored runs, oldest first, with the change in
score and event count against the previous run.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			records := make([]models.ReportRecord, 0, len(ids))
			for _, id := range ids {
				record, err := a.store.GetReport(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, store.ErrReportNotFound) {
						return fmt.Errorf("report %d not found", id)
					}
					return fmt.Errorf("get report %d: %w", id, err)
				}
				records = append(records, *record)
			}

			printComparison(cmd.OutOrStdout(), report.CompareRuns(records))
			return nil
		},
	}
}

func printComparison(w io.Writer, runs []report.RunComparison) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED (UTC)\tEVENTS\tΔEVENTS\tSCORE\tΔSCORE\tLABEL")
	for i, c := range runs {
		eventsDelta := "-"
		if i > 0 {
			eventsDelta = fmt.Sprintf("%+d", c.EventsDelta)
		}
		scoreDelta := "-"
		if c.ScoreDelta != nil {
			scoreDelta = fmt.Sprintf("%+.4f", *c.ScoreDelta)
		}
		label := colorLabel(c.Record.FragilityLabel)
		if c.LabelChange {
			label += " (changed)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
			c.Record.ID, c.Record.CreatedAt.UTC().Format(timeDisplay), c.Record.TotalEvents,
			eventsDelta, scoreCell(c.Record), scoreDelta, label)
	}
	tw.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid report id %q", s)
	}
	return id, nil
}

func scoreCell(r models.ReportRecord) string {
	if s := r.Score(); s.Valid {
		return fmt.Sprintf("%.4f", s.Value)
	}
	return "N/A"
}

// colorLabel colours a label when stdout is a terminal; fatih/color turns
// itself off otherwise.
func colorLabel(label models.Label) string {
	switch label {
	case models.LabelHigh:
		return color.New(color.FgRed, color.Bold).Sprint(label)
	case models.LabelMedium:
		return color.New(color.FgYellow).Sprint(label)
	case models.LabelLow:
		return color.New(color.FgGreen).Sprint(label)
	default:
		return color.New(color.FgHiBlack).Sprint(label)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
