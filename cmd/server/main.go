package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"briefboard/internal/app"
	"briefboard/internal/config"
	"briefboard/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing stores", "error", err)
		}
	}()

	h, err := newHandler(a)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHandler builds the full middleware chain over the API routes.
func newHandler(a *app.App) (http.Handler, error) {
	store, err := a.Likes()
	if err != nil {
		return nil, err
	}
	api := &api{
		news:      a.News,
		finance:   a.Finance,
		dashboard: a.Dashboard,
		likes:     store,
		notices:   a.Notifications,
		watchlist: a.Config.Finance.Watchlist,
		fetch:     a.FetchOptions(),
		timeout:   a.Config.Server.RequestTimeout,
		logger:    a.Logger,
	}
	srv := a.Config.Server
	var h http.Handler = api.routes()
	h = limitBody(srv.MaxBodyBytes, h)
	h = recoverPanic(a.Logger, h)
	h = withGzip(h)
	h = withCORS(srv.CORSOrigins, h)
	return logRequests(a.Logger, h), nil
}
