package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lumeno-study/lumeno/internal/app"
	"github.com/lumeno-study/lumeno/internal/auth"
	"github.com/lumeno-study/lumeno/internal/configuration"
	"github.com/lumeno-study/lumeno/internal/session"
)

func newLoginCmd(cfg *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google and cache the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			identity, err := app.LoginInteractive(ctx, cfg, slog.Default(), func(authURL string) {
				fmt.Fprintln(cmd.OutOrStdout(), "Open this URL to sign in:")
				fmt.Fprintln(cmd.OutOrStdout(), authURL)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", displayName(identity.DisplayName, identity.Email))
			return nil
		},
	}
}

func newLogoutCmd(cfg *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the cached session",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			provider, err := app.NewProvider(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			store := session.NewStore()
			if err := auth.NewLoginFlow(provider, store, logger).SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(cfg *configuration.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()
			provider, err := app.NewProvider(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			store := session.NewStore()
			synchronizer := auth.NewSynchronizer(provider, store, logger)
			synchronizer.Start()
			defer synchronizer.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(store.Snapshot())
		},
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
