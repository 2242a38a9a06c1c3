// Package config loads tracker-wide settings from .storyline/config.yaml
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application-wide settings. Subsystem packages carry their
// own config types; this file maps the on-disk YAML onto them.
type Config struct {
	// Database settings
	Database DatabaseConfig `yaml:"database"`

	// AI settings
	AI AIConfig `yaml:"ai"`

	// Consolidation settings for incoming candidate stories
	Consolidation ConsolidationConfig `yaml:"consolidation"`

	// Planning settings for task generation
	Planning PlanningConfig `yaml:"planning"`
}

// DatabaseConfig defines where the tracker database lives.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AIConfig defines model selection and call discipline.
type AIConfig struct {
	Model         string `yaml:"model"`
	ClassifyModel string `yaml:"classify_model"`

	// MaxAttempts is the retry budget for drafting and planning calls.
	// Classification calls always get a single attempt.
	MaxAttempts int `yaml:"max_attempts"`

	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`
	RequestsPerMinute  int `yaml:"requests_per_minute"`
}

// ConsolidationConfig defines how candidate stories are reconciled
// against existing ones.
type ConsolidationConfig struct {
	// ConfidenceThreshold below which merge/skip verdicts are demoted
	// to create_new. Range: 0.0-1.0.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// MinNarrativeLength under which a candidate is skipped outright.
	MinNarrativeLength int `yaml:"min_narrative_length"`

	// FailSoft keeps the pipeline moving on classifier failure by
	// treating every candidate as create_new.
	FailSoft bool `yaml:"fail_soft"`
}

// PlanningConfig defines defaults for task generation.
type PlanningConfig struct {
	// Platforms generated for when the user does not name any.
	Platforms []string `yaml:"platforms"`
}

// DefaultConfig returns the default application configuration
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: filepath.Join(".storyline", "storyline.db"),
		},
		AI: AIConfig{
			MaxAttempts:        3,
			MaxConcurrentCalls: 3,
			RequestsPerMinute:  60,
		},
		Consolidation: ConsolidationConfig{
			ConfidenceThreshold: 0.70,
			MinNarrativeLength:  12,
			FailSoft:            true,
		},
		Planning: PlanningConfig{
			Platforms: []string{"web", "backend"},
		},
	}
}

// Load reads .storyline/config.yaml under projectRoot. A missing file
// yields the defaults; a malformed file is an error.
func Load(projectRoot string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(projectRoot, ".storyline", "config.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks configuration bounds
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.AI.MaxAttempts < 1 {
		return fmt.Errorf("ai.max_attempts must be at least 1, got %d", c.AI.MaxAttempts)
	}
	if c.AI.MaxConcurrentCalls < 1 {
		return fmt.Errorf("ai.max_concurrent_calls must be at least 1, got %d", c.AI.MaxConcurrentCalls)
	}
	if c.AI.RequestsPerMinute < 1 {
		return fmt.Errorf("ai.requests_per_minute must be at least 1, got %d", c.AI.RequestsPerMinute)
	}
	if c.Consolidation.ConfidenceThreshold < 0 || c.Consolidation.ConfidenceThreshold > 1 {
		return fmt.Errorf("consolidation.confidence_threshold must be 0.0-1.0, got %.2f",
			c.Consolidation.ConfidenceThreshold)
	}
	if c.Consolidation.MinNarrativeLength < 0 {
		return fmt.Errorf("consolidation.min_narrative_length must be non-negative, got %d",
			c.Consolidation.MinNarrativeLength)
	}
	return nil
}

// Save writes the configuration to .storyline/config.yaml under projectRoot
func (c *Config) Save(projectRoot string) error {
	dir := filepath.Join(projectRoot, ".storyline")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
