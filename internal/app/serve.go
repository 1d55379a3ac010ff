package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"

	"github.com/lumeno-study/lumeno/internal/api"
	"github.com/lumeno-study/lumeno/internal/api/handlers"
	natsroutes "github.com/lumeno-study/lumeno/internal/nats"
)

const shutdownTimeout = 10 * time.Second

// Router builds the gin engine with every route registered.
func (a *App) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if a.Config.Tracing.Enabled {
		r.Use(gintrace.Middleware(a.Config.Tracing.ServiceName))
	}

	h := handlers.New(handlers.Deps{
		Store:          a.Store,
		Login:          a.Login,
		Callback:       a.Provider,
		Uploads:        a.Uploads,
		Documents:      a.Documents,
		Collection:     a.Config.Documents.Collection,
		MaxUploadBytes: a.Config.Upload.MaxBytes,
		Checks:         a.Checks,
		Logger:         a.Logger,
	})
	if err := api.RegisterRoutes(r, h, a.Store, a.Config.Server.AllowedOrigins); err != nil {
		return nil, err
	}
	return r, nil
}

// Serve runs the synchronizer, the event subscriber and the HTTP server
// until ctx ends or one of them fails.
func (a *App) Serve(ctx context.Context) error {
	router, err := a.Router()
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              a.Config.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Sync.Run(gctx)
	})

	if a.Events != nil {
		sub := natsroutes.NewClient(a.Events.Conn, a.Logger)
		if err := sub.SubscribeAll(natsroutes.Routes(a.Logger)); err != nil {
			return err
		}
		g.Go(func() error {
			<-gctx.Done()
			sub.Drain()
			return nil
		})
	}

	g.Go(func() error {
		a.Logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
