package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/routing"
	"github.com/lumeno-study/lumeno/internal/session"
)

const (
	identityKey = "identity"
	decisionKey = "decision"
)

// SessionSource is the read side of the session store.
type SessionSource interface {
	Snapshot() session.State
}

// RouteGuard applies the routing decision to page requests: redirects are
// answered here, views are left to the handler.
func RouteGuard(store SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := store.Snapshot()
		d := routing.Decide(st.Checked, st.Authenticated, routing.Route(c.Request.URL.Path))
		if d.Redirect != "" {
			c.Redirect(http.StatusFound, string(d.Redirect))
			c.Abort()
			return
		}
		c.Set(decisionKey, d)
		if st.Authenticated {
			c.Set(identityKey, st.Identity)
			c.Set("user_id", st.Identity.UID)
		}
		c.Next()
	}
}

// RequireAuth guards API routes. It answers 503 while the first auth check
// is pending and 401 when nobody is signed in.
func RequireAuth(store SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		st := store.Snapshot()
		if !st.Checked {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "auth check in progress"})
			return
		}
		if !st.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		c.Set(identityKey, st.Identity)
		c.Set("user_id", st.Identity.UID)
		c.Next()
	}
}

// IdentityFrom returns the identity set by RouteGuard or RequireAuth.
func IdentityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// DecisionFrom returns the routing decision set by RouteGuard.
func DecisionFrom(c *gin.Context) (routing.Decision, bool) {
	v, ok := c.Get(decisionKey)
	if !ok {
		return routing.Decision{}, false
	}
	d, ok := v.(routing.Decision)
	return d, ok
}
