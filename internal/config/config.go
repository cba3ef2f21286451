// Package config provides configuration loading for cardlearn.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the cardlearn service.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Store   StoreConfig   `koanf:"store"`
	Engine  EngineConfig  `koanf:"engine"`
	Retrain RetrainConfig `koanf:"retrain"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// StoreConfig holds correction log settings.
type StoreConfig struct {
	// Path is the SQLite database file for the correction log.
	Path string `koanf:"path"`
}

// Gate holds the per-category override thresholds. Both the confidence
// and the support bound must be met before a prediction overrides the
// upstream value.
type Gate struct {
	MinConfidence float64 `koanf:"min_confidence"`
	MinSupport    int     `koanf:"min_support"`
}

// EngineConfig holds training floors, gating thresholds, and the
// empirical matching constants.
type EngineConfig struct {
	// ModelDir is where model artifacts and metadata are persisted.
	ModelDir string `koanf:"model_dir"`

	// MinTotalCorrections is the overall floor below which training is
	// skipped entirely.
	MinTotalCorrections int `koanf:"min_total_corrections"`
	// MinExamplesCategorical is the per-field floor for categorical fields.
	MinExamplesCategorical int `koanf:"min_examples_categorical"`
	// MinExamplesText is the per-field floor for text fields.
	MinExamplesText int `koanf:"min_examples_text"`
	// MinExamplesStructured is the per-field floor for structured fields.
	MinExamplesStructured int `koanf:"min_examples_structured"`

	// Categorical, Text, and Structured are the per-category override
	// gates. Deliberately conservative: the upstream pipeline is trusted
	// by default.
	Categorical Gate `koanf:"categorical"`
	Text        Gate `koanf:"text"`
	Structured  Gate `koanf:"structured"`

	// FuzzyThreshold is the minimum similarity for fuzzy text matches.
	FuzzyThreshold float64 `koanf:"fuzzy_threshold"`
	// FuzzyConfidenceCap bounds fuzzy match confidence.
	FuzzyConfidenceCap float64 `koanf:"fuzzy_confidence_cap"`
	// TagSeparator splits tag-set field values.
	TagSeparator string `koanf:"tag_separator"`
	// TagConfidenceCap bounds tag-set prediction confidence.
	TagConfidenceCap float64 `koanf:"tag_confidence_cap"`
}

// RetrainConfig holds retrain trigger and scheduler settings.
type RetrainConfig struct {
	// Interval is how often the scheduler evaluates the trigger.
	Interval time.Duration `koanf:"interval"`
	// MinNewCorrections is the correction-count growth that makes the
	// count trigger fire.
	MinNewCorrections int `koanf:"min_new_corrections"`
	// WatchStore enables the filesystem watcher on the correction log.
	WatchStore bool `koanf:"watch_store"`
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Engine.ModelDir == "" {
		return fmt.Errorf("engine.model_dir is required")
	}

	for name, gate := range map[string]Gate{
		"categorical": c.Engine.Categorical,
		"text":        c.Engine.Text,
		"structured":  c.Engine.Structured,
	} {
		if gate.MinConfidence < 0 || gate.MinConfidence > 1 {
			return fmt.Errorf("engine.%s.min_confidence must be in [0,1], got %v", name, gate.MinConfidence)
		}
		if gate.MinSupport < 0 {
			return fmt.Errorf("engine.%s.min_support must be >= 0, got %d", name, gate.MinSupport)
		}
	}

	if c.Engine.FuzzyThreshold <= 0 || c.Engine.FuzzyThreshold > 1 {
		return fmt.Errorf("engine.fuzzy_threshold must be in (0,1], got %v", c.Engine.FuzzyThreshold)
	}
	if c.Engine.FuzzyConfidenceCap <= 0 || c.Engine.FuzzyConfidenceCap > 1 {
		return fmt.Errorf("engine.fuzzy_confidence_cap must be in (0,1], got %v", c.Engine.FuzzyConfidenceCap)
	}
	if c.Engine.TagConfidenceCap <= 0 || c.Engine.TagConfidenceCap > 1 {
		return fmt.Errorf("engine.tag_confidence_cap must be in (0,1], got %v", c.Engine.TagConfidenceCap)
	}
	if c.Engine.MinTotalCorrections < 1 {
		return fmt.Errorf("engine.min_total_corrections must be >= 1, got %d", c.Engine.MinTotalCorrections)
	}

	if c.Retrain.Interval <= 0 {
		return fmt.Errorf("retrain.interval must be positive, got %v", c.Retrain.Interval)
	}
	if c.Retrain.MinNewCorrections < 1 {
		return fmt.Errorf("retrain.min_new_corrections must be >= 1, got %d", c.Retrain.MinNewCorrections)
	}

	return nil
}
