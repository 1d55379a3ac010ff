package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/routing"
	"github.com/lumeno-study/lumeno/internal/session"
	"github.com/lumeno-study/lumeno/internal/shared"
)

// LoginFlow drives the interactive sign-in and explicit logout.
type LoginFlow struct {
	provider Provider
	store    *session.Store
	logger   *slog.Logger
}

func NewLoginFlow(provider Provider, store *session.Store, logger *slog.Logger) *LoginFlow {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginFlow{
		provider: provider,
		store:    store,
		logger:   logger.With("component", "login"),
	}
}

// SignIn runs the provider challenge. On success the identity is written to
// the store and the dashboard route is returned as the navigation target.
// On failure the store is left as it was.
func (l *LoginFlow) SignIn(ctx context.Context, open func(authURL string) error) (models.Identity, routing.Route, error) {
	user, err := l.provider.SignInInteractive(ctx, open)
	if err != nil {
		l.logger.Error("sign-in failed", "error", err)
		msg := "Sign-in failed. Please try again."
		if errors.Is(err, ErrSignInDismissed) {
			msg = "Sign-in was cancelled."
		}
		return models.Identity{}, "", shared.Transport(msg, err)
	}

	identity := IdentityFromUser(*user)
	l.store.Set(identity)
	l.logger.Info("signed in", "uid", identity.UID, "email", identity.Email)
	return identity, routing.RouteDashboard, nil
}

// SignOut ends the provider session and clears the store.
func (l *LoginFlow) SignOut(ctx context.Context) error {
	err := l.provider.SignOut(ctx)
	l.store.Clear()
	if err != nil {
		l.logger.Warn("sign-out finished with error", "error", err)
		return shared.Transport("Sign-out failed.", err)
	}
	l.logger.Info("signed out")
	return nil
}
