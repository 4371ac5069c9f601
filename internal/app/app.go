// Package app wires the store, the socket hub, the messaging core and the
// HTTP surface together and runs them until the process is told to stop.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/pliu/dmchat/internal/config"
	"github.com/pliu/dmchat/internal/delivery"
	"github.com/pliu/dmchat/internal/handlers"
	"github.com/pliu/dmchat/internal/logging"
	"github.com/pliu/dmchat/internal/media"
	"github.com/pliu/dmchat/internal/messaging"
	"github.com/pliu/dmchat/internal/middleware"
	"github.com/pliu/dmchat/internal/sidebar"
	"github.com/pliu/dmchat/internal/store/sqlstore"
	"github.com/pliu/dmchat/internal/ws"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   *sqlstore.SQLStore
	hub     *ws.Hub
	handler http.Handler
}

func NewApp(c *config.Config) (*App, error) {
	return newApp(context.Background(), c, logging.NewJSON(os.Stdout, c.LogLevel))
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	st, err := sqlstore.New(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	uploader, err := newUploader(ctx, c)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("media init error: %w", err)
	}

	var ranker sidebar.Ranker = sidebar.NewNaiveRanker(st, st)
	if c.SidebarIndex {
		ranker = sidebar.NewIndex(st, st)
	}

	hub := ws.NewHub(st, logger)
	router := delivery.NewRouter(hub, logger)
	svc := messaging.NewService(st, router, ranker, uploader, logger)
	hub.SetInboundHandler(svc)

	secret := []byte(c.SecretKey)
	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware(logger))
	registerRoutes(r, routes{
		auth: &handlers.AuthHandler{
			Store:         st,
			Media:         uploader,
			SecretKey:     secret,
			TokenValidity: c.TokenValidityDuration,
			Logger:        logger,
		},
		messages:  &handlers.MessageHandler{Service: svc, Presence: hub, Logger: logger},
		ws:        &handlers.WSHandler{Hub: hub, SecretKey: secret, Users: st, Logger: logger},
		protected: middleware.AuthMiddleware(secret, st),
	})

	return &App{config: c, logger: logger, store: st, hub: hub, handler: r}, nil
}

func newUploader(ctx context.Context, c *config.Config) (media.Uploader, error) {
	if c.S3Bucket == "" {
		return media.Disabled{}, nil
	}
	return media.NewS3Uploader(ctx, media.S3Config{
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{Addr: app.config.EndpointAddr, Handler: app.handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the process receives a stop signal.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.hub.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "Failed to close store", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
