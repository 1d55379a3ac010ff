package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/internal/auth"
	"github.com/lumeno-study/lumeno/internal/configuration"
	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/session"
)

// LoginInteractive signs in from a terminal. A short-lived server on the
// redirect URL answers the provider callback; show receives the URL the
// user has to open.
func LoginInteractive(ctx context.Context, cfg *configuration.Config, logger *slog.Logger, show func(authURL string)) (models.Identity, error) {
	redirect, err := url.Parse(cfg.Auth.RedirectURL)
	if err != nil || redirect.Host == "" {
		return models.Identity{}, fmt.Errorf("invalid redirect url %q", cfg.Auth.RedirectURL)
	}

	provider, err := NewProvider(ctx, cfg, logger)
	if err != nil {
		return models.Identity{}, err
	}
	store := session.NewStore()
	synchronizer := auth.NewSynchronizer(provider, store, logger)
	synchronizer.Start()
	defer synchronizer.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(redirect.Path, func(c *gin.Context) {
		if err := provider.CompleteChallenge(c.Request.Context(), c.Query("state"), c.Query("code"), c.Query("error")); err != nil {
			c.String(http.StatusBadRequest, "Sign-in failed: %v", err)
			return
		}
		c.String(http.StatusOK, "Signed in to LUMENO. You can close this window.")
	})
	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return models.Identity{}, fmt.Errorf("callback listener: %w", err)
	}
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("callback server stopped", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	login := auth.NewLoginFlow(provider, store, logger)
	identity, _, err := login.SignIn(ctx, func(authURL string) error {
		show(authURL)
		return nil
	})
	return identity, err
}
