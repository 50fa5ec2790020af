package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"parcellink/internal/database"
	"parcellink/internal/server"
)

func serveCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored results as a read-only JSON API",
		Long: `Start the report API over the configured database.

Endpoints:
  GET /healthz
  GET /api/summary
  GET /api/buildings/{structID}
  GET /api/parcels/{parcelID}/buildings`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store.Driver == "" {
				return fmt.Errorf("no store driver configured (set store.driver or DB_DRIVER)")
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			store, err := database.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DB, a.log)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", a.cfg.Store.Driver, err)
			}
			defer store.Close()

			cfg := a.cfg.Server
			if addr != "" {
				cfg.Addr = addr
			}
			return server.New(store, cfg, a.log).ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
