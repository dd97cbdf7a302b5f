// Package main is the entry point for the allocator HTTP service.
//
// Startup sequence:
// 1. Load configuration from environment variables (.env supported)
// 2. Initialize logging
// 3. Wire dependencies via the DI container
// 4. Start the HTTP server
// 5. Wait for a shutdown signal and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/di"
	"github.com/aristath/allocator/internal/server"
	"github.com/aristath/allocator/internal/version"
	"github.com/aristath/allocator/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config failed, so there is no configured level yet
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("version", version.Version).
		Int("port", cfg.Port).
		Bool("dev_mode", cfg.DevMode).
		Msg("Starting allocator")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight requests get 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
