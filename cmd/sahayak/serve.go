package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sahayak/internal/aggregate"
	"sahayak/internal/amqp"
	"sahayak/internal/cache"
	"sahayak/internal/cli"
	apphttp "sahayak/internal/http"
	"sahayak/internal/log"
	"sahayak/internal/services"
	"sahayak/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API",
		Long: `Run the dashboard HTTP API. The last persisted snapshot is served
immediately, then refreshed from the source. When AMQP_URL is set, change
notifications from the broker trigger debounced reloads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, logger, err := opts.setup(os.Stdout)
	if err != nil {
		return err
	}
	logger.Info("Starting sahayak", "version", Version)

	ctx, cancel := cli.GracefulShutdown(ctx, logger)
	defer cancel()

	store, err := cli.OpenStore(logger, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Cleanup(); err != nil {
			logger.Warn("Source cleanup failed", log.FieldError, err)
		}
	}()

	manager := cache.NewManager(cache.Config{
		Store:    store,
		Checksum: aggregate.ChecksumFor(cfg.ChecksumMode),
		Logger:   logger,
	})
	refresher := services.NewRefresher(src.Source, store, manager, services.RefresherConfig{
		Debounce: cfg.ReloadDebounce,
		Interval: cfg.RefreshInterval,
	}, logger)
	if err := refresher.Start(ctx); err != nil {
		return fmt.Errorf("start refresher: %w", err)
	}

	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, change notifications disabled", log.FieldError, err)
		} else {
			defer consumer.Close()
			changes := worker.NewChangeWorker(refresher, logger)
			go func() {
				if err := changes.Run(ctx, consumer); err != nil {
					logger.Error("Change worker failed", log.FieldError, err)
				}
			}()
			logger.Info("Consuming change notifications", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	srv, err := apphttp.NewServer(apphttp.ServerConfig{
		Addr:           ":" + cfg.Port,
		ScopeCacheSize: cfg.ScopeCacheSize,
		ScopeCacheTTL:  cfg.ScopeCacheTTL,
	}, refresher, logger)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Port, "source", cfg.SourceType, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	if err := refresher.Stop(shutdownCtx); err != nil {
		logger.Error("Refresher shutdown error", log.FieldError, err)
	}

	if serveErr != nil {
		return fmt.Errorf("http server on port %s: %w", cfg.Port, serveErr)
	}
	logger.Info("Server stopped gracefully", "snapshot_fingerprint", refresher.Current().Fingerprint)
	return nil
}
