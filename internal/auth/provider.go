// Package auth talks to the identity provider and keeps the session store
// in step with it.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/lumeno-study/lumeno/internal/models"
)

// ErrSignInDismissed is returned when the interactive challenge ends
// without an answer (closed popup, timeout, cancelled context).
var ErrSignInDismissed = errors.New("sign-in dismissed")

// ProviderUser is the profile the provider returns after sign-in.
type ProviderUser struct {
	Subject string `json:"sub"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Session is what the provider reports on its change stream.
type Session struct {
	User   ProviderUser `json:"user"`
	Expiry time.Time    `json:"expiry"`
}

// Expired reports whether the session is past its expiry. A zero expiry
// never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.Expiry.IsZero() && now.After(s.Expiry)
}

// Provider is the identity provider contract.
//
// Subscribe delivers the current session (or nil) once immediately, then
// every change in order. The returned function stops delivery.
type Provider interface {
	Subscribe(fn func(*Session)) (unsubscribe func())
	SignInInteractive(ctx context.Context, open func(authURL string) error) (*ProviderUser, error)
	SignOut(ctx context.Context) error
}

// IdentityFromUser maps a provider profile to an Identity.
func IdentityFromUser(u ProviderUser) models.Identity {
	return models.Identity{
		UID:         u.Subject,
		Email:       u.Email,
		DisplayName: u.Name,
		AvatarURL:   u.Picture,
	}
}
