package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/analytics"
	"github.com/harrison/fragility/internal/models"
)

// newTransitionsCommand creates the 'fragility transitions' command
func newTransitionsCommand(opts *globalOptions) *cobra.Command {
	var (
		limit  int
		matrix bool
	)

	cmd := &cobra.Command{
		Use:   "transitions",
		Short: "Show the most frequent action-to-action transitions",
		Long: `Count every consecutive (action, next action) pair within each user's
sequence and list the most frequent, with per-user sequence length
statistics.

Use --matrix to also print the transitions as a from x to grid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Analysis.TransitionLimit
			}

			snap, err := analytics.LoadSnapshot(cmd.Context(), a.store)
			if err != nil {
				return fmt.Errorf("could not read data: %w", err)
			}
			if len(snap.Skipped) > 0 {
				a.log.LogSkippedRows("transitions", "events", snap.Skipped)
			}

			table := analytics.AnalyzeTransitions(snap.Events, limit)
			st, err := analytics.SequenceStats(snap.Events)
			if err != nil {
				return fmt.Errorf("sequence statistics: %w", err)
			}

			out := cmd.OutOrStdout()
			printTransitions(out, table)
			fmt.Fprintln(out)
			printSequenceStats(out, st)
			if matrix {
				fmt.Fprintln(out)
				printMatrix(out, table.Matrix())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", analytics.DefaultTransitionLimit, "Number of transitions to show (<= 0 uses the default)")
	cmd.Flags().BoolVar(&matrix, "matrix", false, "Also print a from x to count matrix")

	return cmd
}

func printTransitions(w io.Writer, table *analytics.TransitionTable) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "Top transitions (%d of %d distinct, %d total across %d users)\n",
		len(table.Transitions), table.Distinct, table.TotalTransitions, table.Users)

	if len(table.Transitions) == 0 {
		fmt.Fprintln(w, "  (no transitions found)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  FROM\tTO\tCOUNT")
	for _, t := range table.Transitions {
		fmt.Fprintf(tw, "  %s\t%s\t%d\n", t.From, t.To, t.Count)
	}
	tw.Flush()
}

func printSequenceStats(w io.Writer, st *analytics.SequenceLengthStats) {
	fmt.Fprintln(w, "Sequence lengths per user:")
	if st.Users == 0 {
		fmt.Fprintln(w, "  (no events found)")
		return
	}
	fmt.Fprintf(w, "  users=%d events=%d mean=%.2f median=%.2f p90=%.2f min=%.0f max=%.0f\n",
		st.Users, st.Events, st.Mean, st.Median, st.P90, st.Min, st.Max)
}

func printMatrix(w io.Writer, m *analytics.TransitionMatrix) {
	fmt.Fprintln(w, "Transition matrix (rows: from, columns: to):")
	if len(m.From) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\t%s\t\n", strings.Join(m.To, "\t"))
	for i, from := range m.From {
		cells := make([]string, len(m.To))
		for j, n := range m.Counts[i] {
			cells[j] = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", from, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

// newSequencesCommand creates the 'fragility sequences' command
func newSequencesCommand(opts *globalOptions) *cobra.Command {
	var maxExamples, before, after int

	cmd := &cobra.Command{
		Use:   "sequences <from-action> <to-action>",
		Short: "Show example event windows around a transition",
		Long: `Find occurrences of <from-action> immediately followed by <to-action>
within a user's sequence and print the surrounding window of events.

Users are scanned in ascending id order and the scan stops once --max
examples are collected, so the sample favours low user ids.

Example:
  fragility sequences add_to_cart cancel --max 5 --before 3 --after 1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			windows := a.windowOptions()
			if cmd.Flags().Changed("max") {
				windows.MaxExamples = maxExamples
			}
			if cmd.Flags().Changed("before") {
				windows.Before = before
			}
			if cmd.Flags().Changed("after") {
				windows.After = after
			}

			snap, err := analytics.LoadSnapshot(cmd.Context(), a.store)
			if err != nil {
				return fmt.Errorf("could not read data: %w", err)
			}

			from, to := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			examples := analytics.ExtractExamples(snap.Events, from, to, windows)
			printExamples(cmd.OutOrStdout(), from, to, examples)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxExamples, "max", analytics.DefaultMaxExamples, "Maximum number of examples (<= 0 uses the default)")
	cmd.Flags().IntVar(&before, "before", analytics.DefaultWindowBefore, "Events to show before the transition")
	cmd.Flags().IntVar(&after, "after", analytics.DefaultWindowAfter, "Events to show after the transition")

	return cmd
}

func printExamples(w io.Writer, from, to string, examples []models.TransitionExample) {
	if len(examples) == 0 {
		fmt.Fprintf(w, "No examples of %s -> %s found.\n", from, to)
		return
	}

	fmt.Fprintf(w, "Examples of %s -> %s (%d):\n", from, to, len(examples))
	for _, ex := range examples {
		fmt.Fprintf(w, "\n#%d user %d\n", ex.Index, ex.UserID)
		fmt.Fprintf(w, "  event ids: %s\n", ex.EventIDs())
		fmt.Fprintf(w, "  sequence : %s\n", ex.Sequence())
	}
}
