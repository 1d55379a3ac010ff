package api

import (
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/cmd/middleware"
	"github.com/lumeno-study/lumeno/internal/api/handlers"
	"github.com/lumeno-study/lumeno/internal/api/templates"
	"github.com/lumeno-study/lumeno/internal/routing"
	"github.com/lumeno-study/lumeno/internal/session"
)

// corsMiddleware allows the listed origins. An empty list or "*" allows any.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0 || slices.Contains(allowed, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowed, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, store *session.Store, allowedOrigins []string) error {
	tmpl, err := templates.Parse()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	r.Use(corsMiddleware(allowedOrigins))

	pages := r.Group("/", middleware.RouteGuard(store))
	{
		pages.GET(string(routing.RouteRoot), h.Page)
		pages.GET(string(routing.RouteLogin), h.Page)
		for _, route := range routing.ProtectedRoutes {
			pages.GET(string(route), h.Page)
		}
	}

	auth := r.Group("/auth")
	{
		auth.GET("/google", h.BeginSignIn)
		auth.GET("/callback", h.Callback)
		auth.POST("/logout", h.Logout)
	}

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/session", h.SessionInfo)

		// The upload flow checks the identity itself when the job starts.
		api.POST("/upload", h.UploadPDF)
		api.GET("/upload/status", h.UploadStatus)
		api.POST("/upload/ack", h.AcknowledgeUpload)

		api.GET("/pdfs", middleware.RequireAuth(store), h.ListPDFs)
	}
	return nil
}
