package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"travel-booking/internal/app"
	"travel-booking/internal/config"
	"travel-booking/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := startupOptions()
	logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		stop()
		os.Exit(1)
	}
}

// startupOptions loads .env before anything reads the environment.
func startupOptions(envFiles ...string) app.Options {
	_ = godotenv.Load(envFiles...)

	return app.Options{
		RunMigrations: config.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", true),
	}
}

func run(ctx context.Context, opts app.Options, logger *observability.Logger) error {
	runtime, err := app.Build(ctx, opts)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Warn("close_failed", map[string]any{"error": err.Error()})
		}
	}()

	srv := &http.Server{
		Addr:              runtime.Addr,
		Handler:           runtime.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": runtime.Addr})
		srvErrCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_signal_received", nil)
	case err := <-srvErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), runtime.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server_stopped", nil)
	return nil
}
