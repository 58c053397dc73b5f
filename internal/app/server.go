package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run starts the background token maintenance jobs and the HTTP server, then
// blocks until ctx is cancelled or the server fails. Cancellation triggers a
// graceful shutdown bounded by shutdownTimeout.
func (a *App) Run(ctx context.Context) error {
	if err := a.Maintenance.Start(); err != nil {
		return fmt.Errorf("start token maintenance: %w", err)
	}
	defer a.Maintenance.Stop()

	srv := &http.Server{
		Addr:              a.Cfg.ListenAddr,
		Handler:           NewRouter(a),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		useTLS := a.Cfg.TLSCertFile != ""
		a.Logger.Info("server listening", "addr", a.Cfg.ListenAddr, "tls", useTLS)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(a.Cfg.TLSCertFile, a.Cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-ctx.Done()
		a.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
