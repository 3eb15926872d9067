package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/report"
)

// newRunCommand creates the 'fragility run' command
func newRunCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build, store and print a fragility report",
		Long: `Read the current event snapshot, compute the fragility score and
classification, store the report in history and print it.

If the report cannot be stored it is still printed before the command
fails, so the computed result is never lost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			result, err := a.builder().Build(cmd.Context())
			if err != nil {
				var persistErr *report.PersistError
				if errors.As(err, &persistErr) && persistErr.Record != nil {
					fmt.Fprint(out, persistErr.Record.Details)
				}
				return err
			}

			fmt.Fprint(out, result.Record.Details)
			return nil
		},
	}
}
