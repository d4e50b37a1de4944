// Package main is the entry point for the booklog API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (from env vars)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in imported packages (internal/server,
// internal/handler, etc.).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/booklog/internal/config"
	"github.com/sakif/booklog/internal/logger"
	"github.com/sakif/booklog/internal/server"
)

// startupTimeout bounds connecting to the store and the image host.
const startupTimeout = 30 * time.Second

func main() {
	// === 1. READ CONFIGURATION ===
	// JWT_SECRET is required. Generate one with:
	//   JWT_SECRET=$(openssl rand -hex 32)
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// LOG_LEVEL picks the minimum level, LOG_FORMAT picks text or json.
	log := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(log)

	// === 3. CREATE AND START THE SERVER ===
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	srv, err := server.New(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
