package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/ingest"
)

// newIngestCommand creates the 'fragility ingest' command group
func newIngestCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Append user actions to the event store",
	}

	cmd.AddCommand(newIngestAddCommand(opts))
	cmd.AddCommand(newIngestBulkCommand(opts))

	return cmd
}

func newIngestAddCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <user-id> <action>",
		Short: "Record a single user action",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			svc, err := a.ingestService()
			if err != nil {
				return err
			}

			event, err := svc.AddOne(cmd.Context(), userID, args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded event %d: user %d %s\n", event.Position, event.UserID, event.Action)
			return nil
		},
	}
}

func newIngestBulkCommand(opts *globalOptions) *cobra.Command {
	var (
		users         int
		eventsPerUser int
		seed          int64
		firstUser     int64
	)

	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Append a synthetic batch of weighted random actions",
		Long: `Generate a reproducible batch of random actions drawn from the
configured vocabulary and weights, then append it in one transaction.

The same --seed always produces the same batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if firstUser < 1 {
				return fmt.Errorf("--first-user must be at least 1, got %d", firstUser)
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("users") {
				users = a.cfg.Ingest.Users
			}
			if !cmd.Flags().Changed("events-per-user") {
				eventsPerUser = a.cfg.Ingest.EventsPerUser
			}
			if !cmd.Flags().Changed("seed") {
				seed = a.cfg.Ingest.Seed
			}

			svc, err := a.ingestService()
			if err != nil {
				return err
			}
			gen, err := ingest.NewSeededGenerator(svc.Vocabulary(), seed)
			if err != nil {
				return err
			}

			batch := gen.Generate(users, eventsPerUser)
			if firstUser > 1 {
				for i := range batch {
					batch[i].UserID += firstUser - 1
				}
			}

			stored, err := svc.AddBulk(cmd.Context(), batch)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Appended %d events for %d users (seed %d)\n", len(stored), users, seed)
			return nil
		},
	}

	cmd.Flags().IntVar(&users, "users", 10, "Number of users (default: ingest.users)")
	cmd.Flags().IntVar(&eventsPerUser, "events-per-user", 20, "Events per user (default: ingest.events_per_user)")
	cmd.Flags().Int64Var(&seed, "seed", 73, "Random seed (default: ingest.seed)")
	cmd.Flags().Int64Var(&firstUser, "first-user", 1, "Id of the first generated user")

	return cmd
}
