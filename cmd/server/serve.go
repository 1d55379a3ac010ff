package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumeno-study/lumeno/internal/app"
	"github.com/lumeno-study/lumeno/internal/configuration"
)

func newServeCmd(cfg *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Lumeno web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := slog.Default()
			stopTracing := app.StartTracing(cfg.Tracing)
			defer stopTracing()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Serve(ctx)
		},
	}
}
