package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/internal/routing"
	"github.com/lumeno-study/lumeno/internal/shared"
)

const messageSignInFailed = "Sign-in failed. Please try again."

// BeginSignIn starts the interactive challenge and sends the browser to
// the provider. The challenge outlives this request; the callback
// handler answers it.
func (h *Handler) BeginSignIn(c *gin.Context) {
	if _, ok := h.store.Get(); ok {
		c.Redirect(http.StatusFound, string(routing.RouteDashboard))
		return
	}

	urls := make(chan string, 1)
	failed := make(chan error, 1)
	ctx := context.WithoutCancel(c.Request.Context())

	go func() {
		_, _, err := h.login.SignIn(ctx, func(authURL string) error {
			urls <- authURL
			return nil
		})
		if err != nil {
			failed <- err
		}
	}()

	select {
	case authURL := <-urls:
		c.Redirect(http.StatusFound, authURL)
	case err := <-failed:
		c.Redirect(http.StatusFound, loginWithError(shared.Message(err)))
	case <-c.Request.Context().Done():
	}
}

// Callback answers the provider redirect.
func (h *Handler) Callback(c *gin.Context) {
	err := h.callback.CompleteChallenge(c.Request.Context(),
		c.Query("state"), c.Query("code"), c.Query("error"))
	if err != nil {
		h.logger.Warn("sign-in callback rejected", "error", err)
		c.Redirect(http.StatusFound, loginWithError(messageSignInFailed))
		return
	}
	c.Redirect(http.StatusFound, string(routing.RouteDashboard))
}

// Logout signs out and returns to the login page. A provider failure is
// logged; the local identity is gone either way.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.login.SignOut(c.Request.Context()); err != nil {
		h.logger.Warn("logout", "error", err)
	}
	c.Redirect(http.StatusSeeOther, string(routing.RouteLogin))
}

func (h *Handler) SessionInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

func loginWithError(msg string) string {
	return string(routing.RouteLogin) + "?error=" + url.QueryEscape(msg)
}
