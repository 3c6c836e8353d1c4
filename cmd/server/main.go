/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the benefits engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Initialize SQLite store
  3. Initialize the ledger store (SQLite or PostgreSQL)
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides APP_PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go. The most relevant keys:
  APP_PORT, DB_PATH, LEDGER_BACKEND, DATABASE_URL, LOG_LEVEL, LOG_JSON

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (SHUTDOWN_TIMEOUT)
  3. Close database connections
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/benefits.db"

  # Keep calculation records in PostgreSQL
  LEDGER_BACKEND=postgres DATABASE_URL=postgres://localhost/benefits ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/benefits-engine/api"
	"github.com/warp/benefits-engine/config"
	"github.com/warp/benefits-engine/store/postgres"
	"github.com/warp/benefits-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	port := flag.Int("port", cfg.App.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()
	cfg.App.Port = *port
	cfg.Database.Path = *dbPath

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := api.NewLogger(os.Stdout, cfg.SlogLevel(), cfg.App.LogJSON)
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	var records api.LedgerStore = store
	if cfg.Database.LedgerBackend == config.BackendPostgres {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.New(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		cancel()
		if err != nil {
			return fmt.Errorf("initialize ledger database: %w", err)
		}
		defer pg.Close()
		records = pg
	}

	handler := api.NewHandler(store, records, logger)
	router := api.NewRouter(handler, cfg.HTTP.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"port", cfg.App.Port,
			"env", cfg.App.Env,
			"ledger_backend", cfg.Database.LedgerBackend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
