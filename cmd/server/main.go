// Agentic honeypot - scam engagement and intelligence extraction service
package main

import (
	"context"
	"os"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/config"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/logging"
	"github.com/Dipanshu-saikia/agentic-honeypot/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting honeypot",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"max_sessions", cfg.MaxSessions,
		"session_ttl", cfg.SessionTTL,
		"callback_url", cfg.CallbackURL,
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
