// Package cli provides common initialization shared by cmd/compta and
// cmd/compta-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"compta/internal/backend"
	"compta/internal/config"
	"compta/internal/log"
	"compta/internal/services"
	"compta/internal/settings"
	"compta/internal/storage"
)

// SetupLogger creates a text logger at level writing to w and installs it
// as the default logger.
func SetupLogger(level string, w io.Writer) *log.Logger {
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// Ledger bundles an opened LedgerService with the resources behind it.
type Ledger struct {
	Service      *services.LedgerService
	Backend      *backend.BackendResult
	SettingsPath string
}

// Close releases the journal and AMQP connection.
func (l *Ledger) Close() error {
	if l.Backend == nil || l.Backend.Cleanup == nil {
		return nil
	}
	return l.Backend.Cleanup()
}

// OpenLedger loads the settings document, creates the configured backend and
// returns a LedgerService that persists account changes to the settings file.
func OpenLedger(ctx context.Context, logger *log.Logger, cfg *config.Config) (*Ledger, error) {
	path := cfg.SettingsPath()
	doc, err := settings.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	bcfg, err := backend.FromAppConfig(cfg, doc)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	save := func(d settings.Document) error { return settings.Save(path, d) }
	opts := append(res.ServiceOptions(), services.WithLogger(logger))
	svc := services.NewLedgerService(res.Store, doc, save, opts...)

	logger.DebugContext(ctx, "Ledger opened",
		"backend", bcfg.Type,
		"data_directory", bcfg.DataDirectory,
		"settings", path)

	return &Ledger{Service: svc, Backend: res, SettingsPath: path}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		cleanupDone := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(cleanupDone)
		}()

		select {
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		case <-cleanupDone:
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
