package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces cardlearn environment variables.
	envPrefix = "CARDLEARN_"
)

// LoadWithFile loads configuration from a YAML file, then overrides
// with environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (CARDLEARN_SERVER_PORT, CARDLEARN_ENGINE_MODEL_DIR, ...)
//  2. YAML config file (~/.config/cardlearn/config.yaml by default)
//  3. Hardcoded defaults
//
// A missing config file is not an error; defaults plus environment
// apply. Environment variables map the section as the first underscore
// segment: CARDLEARN_SERVER_PORT -> server.port,
// CARDLEARN_ENGINE_MODEL_DIR -> engine.model_dir.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "cardlearn", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment overrides: strip prefix, split section on the first
	// underscore, keep underscores inside the field name.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns the built-in defaults without reading any file or
// environment.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8480
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultDataPath("corrections.db")
	}
	if cfg.Engine.ModelDir == "" {
		cfg.Engine.ModelDir = defaultDataPath("models")
	}

	if cfg.Engine.MinTotalCorrections == 0 {
		cfg.Engine.MinTotalCorrections = 10
	}
	if cfg.Engine.MinExamplesCategorical == 0 {
		cfg.Engine.MinExamplesCategorical = 5
	}
	if cfg.Engine.MinExamplesText == 0 {
		cfg.Engine.MinExamplesText = 5
	}
	if cfg.Engine.MinExamplesStructured == 0 {
		cfg.Engine.MinExamplesStructured = 3
	}

	if cfg.Engine.Categorical.MinConfidence == 0 {
		cfg.Engine.Categorical.MinConfidence = 0.90
	}
	if cfg.Engine.Categorical.MinSupport == 0 {
		cfg.Engine.Categorical.MinSupport = 5
	}
	if cfg.Engine.Text.MinConfidence == 0 {
		cfg.Engine.Text.MinConfidence = 0.95
	}
	if cfg.Engine.Text.MinSupport == 0 {
		cfg.Engine.Text.MinSupport = 8
	}
	if cfg.Engine.Structured.MinConfidence == 0 {
		cfg.Engine.Structured.MinConfidence = 0.92
	}
	if cfg.Engine.Structured.MinSupport == 0 {
		cfg.Engine.Structured.MinSupport = 4
	}

	if cfg.Engine.FuzzyThreshold == 0 {
		cfg.Engine.FuzzyThreshold = 0.85
	}
	if cfg.Engine.FuzzyConfidenceCap == 0 {
		cfg.Engine.FuzzyConfidenceCap = 0.90
	}
	if cfg.Engine.TagSeparator == "" {
		cfg.Engine.TagSeparator = ","
	}
	if cfg.Engine.TagConfidenceCap == 0 {
		cfg.Engine.TagConfidenceCap = 0.90
	}

	if cfg.Retrain.Interval == 0 {
		cfg.Retrain.Interval = 15 * time.Minute
	}
	if cfg.Retrain.MinNewCorrections == 0 {
		cfg.Retrain.MinNewCorrections = 25
	}
}

// defaultDataPath places data under ~/.local/share/cardlearn, falling
// back to the working directory when no home is available.
func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".local", "share", "cardlearn", name)
}
