// Package handlers holds the gin handlers for pages, sign-in and uploads.
package handlers

import (
	"context"
	"log/slog"

	"github.com/lumeno-study/lumeno/internal/auth"
	"github.com/lumeno-study/lumeno/internal/services"
	"github.com/lumeno-study/lumeno/internal/session"
	"github.com/lumeno-study/lumeno/internal/storage"
	"github.com/lumeno-study/lumeno/internal/upload"
)

// ChallengeCompleter answers the provider redirect.
type ChallengeCompleter interface {
	CompleteChallenge(ctx context.Context, state, code, providerErr string) error
}

type Deps struct {
	Store          *session.Store
	Login          *auth.LoginFlow
	Callback       ChallengeCompleter
	Uploads        *upload.Flow
	Documents      storage.Store
	Collection     string
	MaxUploadBytes int64
	Checks         map[string]services.HealthChecker
	Logger         *slog.Logger
}

type Handler struct {
	store          *session.Store
	login          *auth.LoginFlow
	callback       ChallengeCompleter
	uploads        *upload.Flow
	documents      storage.Store
	collection     string
	maxUploadBytes int64
	checks         map[string]services.HealthChecker
	logger         *slog.Logger
}

func New(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collection := d.Collection
	if collection == "" {
		collection = storage.CollectionPDFs
	}
	return &Handler{
		store:          d.Store,
		login:          d.Login,
		callback:       d.Callback,
		uploads:        d.Uploads,
		documents:      d.Documents,
		collection:     collection,
		maxUploadBytes: d.MaxUploadBytes,
		checks:         d.Checks,
		logger:         logger.With("component", "http"),
	}
}
