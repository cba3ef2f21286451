package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slabworks/cardlearn/internal/config"
	"github.com/slabworks/cardlearn/internal/engine"
	"github.com/slabworks/cardlearn/internal/httpapi"
	"github.com/slabworks/cardlearn/internal/logging"
	"github.com/slabworks/cardlearn/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the correction daemon",
	Long: `Start the cardlearnd HTTP server with the background retrain scheduler.

The daemon loads persisted models (training from the correction log when
none exist), serves predictions over HTTP, and retrains in the
background as corrections accumulate.

Examples:
  # Start with defaults
  cardlearnd serve

  # Configure via environment
  CARDLEARN_SERVER_PORT=9480 cardlearnd serve`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // best-effort on shutdown
	}()

	logger.Info("starting cardlearnd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Path),
		zap.String("model_dir", cfg.Engine.ModelDir),
	)

	s, err := store.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open correction store: %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close correction store", zap.Error(err))
		}
	}()

	// Retrain policy: correction-count growth, plus the on-disk watcher
	// when enabled. The watcher is attached after the store is open so
	// the database file exists.
	trigger := engine.AnyTrigger{
		&engine.CountGrowthTrigger{MinNew: cfg.Retrain.MinNewCorrections},
	}
	if cfg.Retrain.WatchStore {
		fileTrigger, err := engine.NewFileActivityTrigger(cfg.Store.Path, logger)
		if err != nil {
			logger.Warn("correction log watcher unavailable", zap.Error(err))
		} else {
			defer fileTrigger.Close()
			trigger = append(trigger, fileTrigger)
		}
	}

	eng, err := engine.New(cfg.Engine, s, logger, engine.WithTrigger(trigger))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if err := eng.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	logger.Info("engine ready",
		zap.String("state", string(eng.State())),
		zap.String("model_version", eng.Meta().Version),
	)

	scheduler, err := engine.NewRetrainScheduler(eng, cfg.Retrain.Interval, logger)
	if err != nil {
		return fmt.Errorf("failed to create retrain scheduler: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start retrain scheduler: %w", err)
	}
	defer scheduler.Stop()

	server, err := httpapi.NewServer(eng, s, logger, &httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
