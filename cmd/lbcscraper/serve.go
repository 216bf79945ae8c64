package main

import (
	"github.com/spf13/cobra"

	"github.com/IshaanNene/lbcscraper/internal/api"
	"github.com/IshaanNene/lbcscraper/internal/observability"
)

var apiPort int

// serveCmd creates the "serve" subcommand exposing the output files.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON output files over HTTP",
		Long: `Serve starts a read-only JSON API over the output directory.

Endpoints:
  GET  /api/health
  GET  /api/files
  GET  /api/file/{name}
  POST /api/files/multiple
  GET  /api/stats
  GET  /metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if apiPort > 0 {
				cfg.API.Port = apiPort
			}

			ctx, cancel := signalContext(logger)
			defer cancel()

			return api.NewServer(cfg, observability.NewMetrics(logger), logger).ListenAndServe(ctx)
		},
	}
	cmd.Flags().IntVarP(&apiPort, "port", "p", 0, "listen port (defaults to api.port)")
	return cmd
}
