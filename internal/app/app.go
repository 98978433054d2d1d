package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"wagate/internal/config"
	"wagate/internal/logging"
)

// ShutdownTimeout bounds draining in-flight HTTP requests.
const ShutdownTimeout = 10 * time.Second

// App runs a wired gateway.
type App struct {
	cfg    config.Config
	wire   *Wire
	server *http.Server
	log    *logrus.Entry
}

// ConfigureLogging applies the log settings to the standard logger.
func ConfigureLogging(cfg config.Config) *logrus.Logger {
	return logging.Configure(loggingConfig(cfg.Log))
}

// New binds the HTTP server to wire. Nothing listens or connects until Run.
func New(cfg config.Config, wire *Wire) *App {
	return &App{
		cfg:  cfg,
		wire: wire,
		server: &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           wire.API.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: wire.Log.WithField("component", "app"),
	}
}

// Run serves HTTP, starts the session and forwards events until ctx is
// done or the listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.wire.API.Run(ctx)
	}()
	if a.wire.Webhook != nil {
		ch, unsubscribe := a.wire.Bus.Subscribe(64)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			a.wire.Webhook.Run(ctx, ch)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if err := a.wire.Supervisor.Initialize(ctx); err != nil {
		a.log.WithError(err).Error("Session initialization failed")
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			runErr = err
		}
	}

	a.log.Info("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	cancel()
	wg.Wait()
	if err := a.wire.Close(); err != nil {
		a.log.WithError(err).Warn("Close failed")
	}
	return runErr
}
