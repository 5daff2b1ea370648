/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contract administration server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (optional) and configuration
  2. Build the zap logger
  3. Create the session registry and its idle sweeper
  4. Create API handler and router
  5. Start server with graceful shutdown

CONFIGURATION:
  config.toml in the working directory or /app, overridden by
  CONTRACTS_-prefixed environment variables, e.g.
    CONTRACTS_APP_PORT=3000
    CONTRACTS_LOG_FORMAT=json
    CONTRACTS_SESSION_IDLE_TTL=2h
    CONTRACTS_EXPORT_DIR=/var/lib/contracts/exports

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (http.shutdown_timeout)
  3. Stop the session sweeper
  4. Exit

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - api/session.go: Session registry
*/
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
	"github.com/warp/contract-admin/api"
	"github.com/warp/contract-admin/config"
	"github.com/warp/contract-admin/logger"
	"go.uber.org/zap"
)

const maxSweepInterval = 5 * time.Minute

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultConfig().TimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sessions := api.NewSessions(cfg.Session.MaxSessions, cfg.Session.IdleTTL, log)
	sweeper := api.NewSessionSweeper(sessions, sweepInterval(cfg.Session.IdleTTL), log)
	sweeper.Start()
	defer sweeper.Stop()

	handler := api.NewHandler(sessions,
		api.WithExportDir(cfg.Export.Dir),
		api.WithMaxBodySize(cfg.HTTP.MaxBodySize),
		api.WithLogger(log),
	)
	router := api.NewRouter(handler, cfg.HTTP.CORSAllowOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("env", cfg.App.Env),
			zap.Int("max_sessions", cfg.Session.MaxSessions),
			zap.Duration("session_idle_ttl", cfg.Session.IdleTTL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("server stopped")
}

// sweepInterval checks often enough that a session outlives its TTL by
// at most a quarter of it.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return maxSweepInterval
	}
	if d := ttl / 4; d < maxSweepInterval {
		return d
	}
	return maxSweepInterval
}
