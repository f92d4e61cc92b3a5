package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pageza/kitchen-assistant/backend/config"
	"github.com/pageza/kitchen-assistant/backend/internal/logger"
	"github.com/pageza/kitchen-assistant/backend/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info("configuration loaded",
		"environment", string(cfg.Environment),
		"provider", cfg.AIProvider,
		"upload_backend", cfg.UploadBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create and start server
	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}

	// Channel to listen for errors coming from the server
	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Block until we receive a signal or error
	select {
	case err := <-errChan:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
