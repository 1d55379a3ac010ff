package main

import (
	"github.com/spf13/cobra"

	"github.com/lumeno-study/lumeno/internal/configuration"
)

func newRootCmd(cfg *configuration.Config) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "lumeno",
		Short:         "Lumeno is an AI-powered study companion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return configureLogger(logLevel, cfg.Log)
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(cfg),
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newWhoamiCmd(cfg),
		newUploadCmd(cfg),
	)

	return cmd
}
