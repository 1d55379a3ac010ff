// Package app builds the components from configuration and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumeno-study/lumeno/internal/auth"
	"github.com/lumeno-study/lumeno/internal/configuration"
	"github.com/lumeno-study/lumeno/internal/services"
	"github.com/lumeno-study/lumeno/internal/session"
	"github.com/lumeno-study/lumeno/internal/storage"
	"github.com/lumeno-study/lumeno/internal/upload"
)

// App is one process: a single session store, synchronizer and upload job.
type App struct {
	Config    *configuration.Config
	Logger    *slog.Logger
	Store     *session.Store
	Provider  *auth.OIDCProvider
	Sync      *auth.Synchronizer
	Login     *auth.LoginFlow
	Objects   services.ObjectStorage
	Documents storage.Store
	Uploads   *upload.Flow
	Events    *services.EventBus
	Checks    map[string]services.HealthChecker

	closers []func() error
}

// NewProvider discovers the OIDC issuer and restores any cached session.
func NewProvider(ctx context.Context, cfg *configuration.Config, logger *slog.Logger) (*auth.OIDCProvider, error) {
	return auth.NewOIDCProvider(ctx, auth.OIDCConfig{
		IssuerURL:        cfg.Auth.IssuerURL,
		ClientID:         cfg.Auth.ClientID,
		ClientSecret:     cfg.Auth.ClientSecret,
		RedirectURL:      cfg.Auth.RedirectURL,
		SelectAccount:    cfg.Auth.SelectAccount,
		SessionCachePath: cfg.Auth.SessionCachePath,
		StateKey:         []byte(cfg.Auth.StateKey),
	}, logger)
}

// New wires every component. Optional backends (NATS, ClamAV) are only
// connected when configured.
func New(ctx context.Context, cfg *configuration.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  session.NewStore(),
		Checks: make(map[string]services.HealthChecker),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Provider, err = NewProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Sync = auth.NewSynchronizer(a.Provider, a.Store, logger)
	a.Login = auth.NewLoginFlow(a.Provider, a.Store, logger)

	objects, closeObjects, err := NewObjectStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	a.Objects = objects
	a.closers = append(a.closers, closeObjects)
	if hc, ok := objects.(services.HealthChecker); ok {
		a.Checks["objects"] = hc
	}

	docs, err := NewDocumentStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	a.Documents = docs
	a.closers = append(a.closers, docs.Close)
	if hc, ok := docs.(services.HealthChecker); ok {
		a.Checks["documents"] = hc
	}

	opts := []upload.Option{
		upload.WithCollection(cfg.Documents.Collection),
		upload.WithMaxBytes(cfg.Upload.MaxBytes),
	}

	if cfg.Upload.Scan {
		scanner := services.NewClamAVScanner(cfg.CLAMAVURL, logger)
		a.Checks["clamav"] = scanner
		opts = append(opts, upload.WithScanner(scanner))
	}

	if cfg.NATSURL != "" {
		a.Events, err = services.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		a.Checks["nats"] = a.Events
		opts = append(opts, upload.WithPublisher(a.Events))
	}

	a.Uploads = upload.NewFlow(a.Store, a.Objects, a.Documents, logger, opts...)
	return a, nil
}

// Close releases backends in reverse order of creation.
func (a *App) Close() error {
	if a.Sync != nil {
		a.Sync.Close()
	}
	if a.Events != nil {
		a.Events.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
