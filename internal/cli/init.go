// Package cli holds the start-up steps shared by the sahayak subcommands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sahayak/internal/config"
	"sahayak/internal/log"
	"sahayak/internal/storage"
)

// SetupLogger creates the text logger at the given LOG_LEVEL and installs it
// as the slog default.
func SetupLogger(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := log.New(log.Config{
		Handler: slog.NewTextHandler(w, &slog.HandlerOptions{Level: log.ParseLevel(level)}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env files for local development. Missing files are
// ignored; unreadable or malformed ones are reported.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the key-value store selected by cfg.
func OpenStore(logger *log.Logger, cfg *config.Config) (storage.Store, error) {
	store, err := storage.Open(cfg.StoreBackend, cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	attrs := []any{"backend", cfg.StoreBackend}
	if s, ok := store.(*storage.SQLiteStore); ok {
		attrs = append(attrs, "path", cfg.SQLiteDBPath, "schema_version", s.SchemaVersion())
	}
	logger.Info("Store opened", attrs...)
	return store, nil
}

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal is left to the default handler and kills the process.
func GracefulShutdown(parent context.Context, logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
