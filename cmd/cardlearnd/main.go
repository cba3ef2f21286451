// Cardlearnd is the learning-based correction daemon for trading-card
// extraction pipelines. It learns from human corrections to extracted
// card fields and, once confident enough, overrides future extraction
// mistakes automatically.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/slabworks/cardlearn/internal/config"
	"github.com/slabworks/cardlearn/internal/engine"
	"github.com/slabworks/cardlearn/internal/logging"
	"github.com/slabworks/cardlearn/internal/store"
)

var (
	// configPath is the --config flag value; empty means the default
	// lookup path.
	configPath string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cardlearnd",
	Short: "Learning-based correction engine for card field extraction",
	Long: `cardlearnd observes human corrections to extracted trading-card fields,
trains per-field models from them, and overrides future extraction
mistakes once a prediction clears its confidence and support gates.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/cardlearn/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(statusCmd)
}

// app bundles the wired components every subcommand needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  store.CorrectionStore
	engine *engine.Engine
}

// setup loads configuration and wires the logger, correction store, and
// engine. Callers must invoke close when done.
func setup(opts ...engine.Option) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open correction store: %w", err)
	}

	eng, err := engine.New(cfg.Engine, s, logger, opts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: s, engine: eng}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close correction store", zap.Error(err))
	}
	_ = a.logger.Sync() // best-effort on shutdown
}
