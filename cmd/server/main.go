// Package main is the entry point for the iamcore server binary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"iamcore/internal/app"
	"iamcore/internal/config"
	"iamcore/internal/db"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "iamcore: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = config.LoadDotEnv(".env")
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	pool, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.DBMaxOpenConn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, app.Deps{Cfg: cfg, DB: pool, Logger: logger})
	if err != nil {
		return err
	}

	scheme := "http"
	if cfg.TLSCertFile != "" {
		scheme = "https"
	}
	logger.Info("api base url",
		"url", fmt.Sprintf("%s://%s/api/v1", scheme, hostForListenAddr(cfg.ListenAddr)))

	return a.Run(ctx)
}

// hostForListenAddr turns a listen address into a host clients can dial.
// Wildcard and empty hosts become localhost.
func hostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
