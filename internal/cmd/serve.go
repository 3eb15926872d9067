package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/fragility/internal/server"
)

// newServeCommand creates the 'fragility serve' command
func newServeCommand(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and prometheus metrics",
		Long: `Serve the read/write HTTP API:

  GET  /api/transitions?limit=
  GET  /api/sequences?from=&to=&max=&before=&after=
  GET  /api/stats/sequences
  GET  /api/reports?limit=&since=&until=
  GET  /api/reports/{id}?format=json|text|markdown|html
  POST /api/reports
  POST /api/events
  GET  /metrics
  GET  /healthz

The server shuts down gracefully on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}

			svc, err := a.ingestService()
			if err != nil {
				return err
			}

			srv := server.New(a.store, a.store, a.builder(), svc, a.metrics, a.log, server.Options{
				TransitionLimit: a.cfg.Analysis.TransitionLimit,
				HistoryLimit:    a.cfg.History.DefaultLimit,
				Windows:         a.windowOptions(),
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address (default: server.addr)")

	return cmd
}
