package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapmetrics/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the metrics API over HTTP",
		Long: `Start an HTTP server exposing the metric catalog and query API.

Endpoints:
  GET  /api/health
  GET  /api/metrics, /api/metrics/{name}, /api/dimensions, /api/measures
  GET  /api/history?limit=N, /api/history/{id}
  GET  /api/validate
  POST /api/compile, /api/query[?dry_run=true]

The listen address comes from server.addr in the config file or --addr.`,
		Example: `  # Serve on the default address
  leapmetrics serve

  # Serve with seeds loaded into an in-memory database
  leapmetrics serve --seed --addr 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if seed {
				tables, err := cmdCtx.Engine.LoadSeeds(cmd.Context(), "")
				if err != nil {
					return err
				}
				cmdCtx.Logger.Info("seeds loaded", "tables", tables)
			}

			srv := server.NewServer(server.Config{
				Engine: cmdCtx.Engine,
				Addr:   cmdCtx.Cfg.Server.Addr,
				Logger: cmdCtx.Logger,
			})

			cmdCtx.Renderer.Success(fmt.Sprintf("Serving metrics API on http://%s/api", srv.Addr()))
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default "+server.DefaultAddr+")")
	cmd.Flags().BoolVar(&seed, "seed", false, "Load seed files before serving")
	return cmd
}
