// Package main implements the entry point for the render-api server, a
// gateway in front of image and video generation providers with
// per-credential rate limiting, background task execution, and webhook
// notifications.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/platform/logger"
)

// main loads configuration, wires the application, and runs the HTTP server
// until a shutdown signal arrives.
func main() {
	cfg, err := initializeConfig()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}

	if err := app.startHTTPServer(context.Background(), app.setupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeConfig loads configuration and sets up structured logging.
func initializeConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := logger.Setup(cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"rate_limit_enabled", cfg.RateLimit.Enabled,
		"rate_limit_distributed", cfg.RateLimit.Distributed,
		"queue_concurrency", cfg.Queue.Concurrency)

	if cfg.Database.URL != "" {
		slog.Debug("Database configuration", "url_present", true)
	}
	if cfg.Redis.URL != "" {
		slog.Debug("Redis configuration", "url_present", true)
	}

	return cfg, nil
}
