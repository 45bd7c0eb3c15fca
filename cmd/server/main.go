/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the condominium ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize store (SQLite file, or in-process memory)
  3. Connect the event publisher (AMQP when configured)
  4. Create API handler and start the audit scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -port    HTTP server port (PORT, default: 8080)
  -db      SQLite database path (DB_PATH, default: condo.db)
           Use ":memory:" for the in-memory store

ENVIRONMENT:
  LOG_LEVEL, CORS_ORIGINS, AUDIT_ENABLED, AUDIT_INTERVAL, DEBT_POLICY,
  FIRST_DIGITAL_YEAR, AMQP_URL, AMQP_EXCHANGE. See config/config.go.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the audit scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close publisher and store

EXAMPLES:
  # Run with file database
  ./server -db="./data/condo.db"

  # Run with in-memory store and a nightly audit
  AUDIT_INTERVAL=24h ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Periodic audit
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/condo-ledger/api"
	"github.com/warp/condo-ledger/config"
	"github.com/warp/condo-ledger/engine"
	memstore "github.com/warp/condo-ledger/engine/store"
	"github.com/warp/condo-ledger/events"
	"github.com/warp/condo-ledger/store/sqlite"
)

func main() {
	cfg := config.Load()

	// Flags
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	// Setup structured logging
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize store
	store, err := openStore(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	// Event publisher (optional)
	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP publisher", "error", err)
			os.Exit(1)
		}
		publisher = amqpPublisher
		logger.Info("Audit events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Audit events disabled - no AMQP_URL provided")
	}
	defer publisher.Close()

	// Initialize handler
	handler := api.NewHandler(store)
	handler.Logger = logger.With("component", "api")
	handler.Policy = cfg.Policy()
	handler.FirstYear = cfg.FirstDigitalYear

	scheduler := api.NewAuditScheduler(store, publisher, logger)
	scheduler.Interval = cfg.AuditInterval
	scheduler.Enabled = cfg.AuditEnabled
	scheduler.FirstYear = cfg.FirstDigitalYear
	handler.Scheduler = scheduler

	// Create router
	router := api.NewRouter(handler, cfg.CORSOrigins)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", "addr", "http://localhost:"+cfg.Port, "policy", cfg.DebtPolicy)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("Shutting down server...", "signal", sig.String())
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

func openStore(path string) (engine.Store, error) {
	if path == ":memory:" {
		return memstore.NewMemory(), nil
	}
	return sqlite.New(path)
}
