package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/cmd/middleware"
	"github.com/lumeno-study/lumeno/internal/models"
	"github.com/lumeno-study/lumeno/internal/routing"
	"github.com/lumeno-study/lumeno/internal/upload"
)

type page struct {
	Title      string
	View       routing.View
	Active     routing.Route
	Identity   models.Identity
	Nav        []NavItem
	Cards      []FeatureCard
	Decoration Decoration
	Job        upload.JobState
	Error      string
}

// Page renders whatever view RouteGuard picked for the request.
func (h *Handler) Page(c *gin.Context) {
	d, ok := middleware.DecisionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no routing decision"})
		return
	}

	switch d.View {
	case routing.ViewLoading:
		c.HTML(http.StatusOK, "loading.html", nil)
	case routing.ViewLogin:
		c.HTML(http.StatusOK, "login.html", page{
			View:       d.View,
			Decoration: DefaultDecoration,
			Error:      c.Query("error"),
		})
	default:
		identity, _ := middleware.IdentityFrom(c)
		p := page{
			Title:      viewTitles[d.View],
			View:       d.View,
			Active:     routing.Route(c.Request.URL.Path),
			Identity:   identity,
			Nav:        NavItems,
			Cards:      FeatureCards,
			Decoration: DefaultDecoration,
		}
		if d.View == routing.ViewUpload {
			p.Job = h.uploads.Snapshot()
		}
		c.HTML(http.StatusOK, "dashboard.html", p)
	}
}
