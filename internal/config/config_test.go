package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	// Spec-mandated conservative gates.
	assert.Equal(t, 0.90, cfg.Engine.Categorical.MinConfidence)
	assert.Equal(t, 5, cfg.Engine.Categorical.MinSupport)
	assert.Equal(t, 0.95, cfg.Engine.Text.MinConfidence)
	assert.Equal(t, 8, cfg.Engine.Text.MinSupport)
	assert.Equal(t, 0.92, cfg.Engine.Structured.MinConfidence)
	assert.Equal(t, 4, cfg.Engine.Structured.MinSupport)

	// Training floors.
	assert.Equal(t, 10, cfg.Engine.MinTotalCorrections)
	assert.Equal(t, 5, cfg.Engine.MinExamplesCategorical)
	assert.Equal(t, 5, cfg.Engine.MinExamplesText)
	assert.Equal(t, 3, cfg.Engine.MinExamplesStructured)

	// Empirical matching constants stay configurable defaults.
	assert.Equal(t, 0.85, cfg.Engine.FuzzyThreshold)
	assert.Equal(t, 0.90, cfg.Engine.FuzzyConfidenceCap)
}

func TestLoadWithFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9999
logging:
  level: debug
  format: console
engine:
  model_dir: /tmp/cardlearn-models
  text:
    min_support: 12
retrain:
  interval: 1h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/tmp/cardlearn-models", cfg.Engine.ModelDir)
	assert.Equal(t, 12, cfg.Engine.Text.MinSupport)
	assert.Equal(t, time.Hour, cfg.Retrain.Interval)

	// Unset fields fall back to defaults.
	assert.Equal(t, 0.95, cfg.Engine.Text.MinConfidence)
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoadWithFile_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9999\n"), 0600))

	t.Setenv("CARDLEARN_SERVER_PORT", "7777")
	t.Setenv("CARDLEARN_LOGGING_LEVEL", "warn")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8480, cfg.Server.Port)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"bad level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty store path", func(c *Config) { c.Store.Path = "" }},
		{"empty model dir", func(c *Config) { c.Engine.ModelDir = "" }},
		{"confidence above one", func(c *Config) { c.Engine.Text.MinConfidence = 1.5 }},
		{"negative support", func(c *Config) { c.Engine.Structured.MinSupport = -2 }},
		{"fuzzy threshold above one", func(c *Config) { c.Engine.FuzzyThreshold = 1.2 }},
		{"zero retrain interval", func(c *Config) { c.Retrain.Interval = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
