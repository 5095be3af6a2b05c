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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/config"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/logger"
	"github.com/rumor-ml/commons.systems/cardstatements/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := logger.New()

	// .env is optional; deployed environments set variables directly
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, log)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. Server resources are released before it returns.
func run(ctx context.Context, log zerolog.Logger) error {
	cfg := config.Load()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	if authEmulator := os.Getenv("FIREBASE_AUTH_EMULATOR_HOST"); authEmulator != "" {
		log.Info().Str("host", authEmulator).Msg("using Firebase Auth emulator")
	}

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close server resources")
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("port", cfg.Port).
		Str("environment", cfg.Environment).
		Msg("server starting")
	return serve(ctx, httpServer, log)
}

// serve runs httpServer until it fails or ctx is cancelled, then shuts it down gracefully
func serve(ctx context.Context, httpServer *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
