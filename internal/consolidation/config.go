package consolidation

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for the consolidation pass
type Config struct {
	// ConfidenceThreshold is the minimum classifier confidence (0.0-1.0)
	// required to honor a skip or merge judgment. Below the threshold the
	// candidate is demoted to create_new.
	// Default: 0.70
	ConfidenceThreshold float64

	// MinNarrativeLength is the minimum narrative length to attempt
	// semantic comparison. Shorter narratives default to create_new
	// without a classifier call.
	// Default: 12 characters
	MinNarrativeLength int

	// FailSoft controls behavior when the classifier fails or returns
	// malformed data. When true (the default) the whole pass degrades to
	// create_new for every candidate and the result is marked
	// UsedFallback. When false the error is returned to the caller.
	FailSoft bool
}

// DefaultConfig returns the default consolidation configuration
//
// The defaults are chosen so a broken or flaky classifier never blocks
// the user from saving stories, and so a hesitant classifier cannot
// silently discard a candidate.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.70,
		MinNarrativeLength:  12,
		FailSoft:            true,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0.0 || c.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("confidence_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.ConfidenceThreshold)
	}
	if c.MinNarrativeLength < 0 {
		return fmt.Errorf("min_narrative_length cannot be negative (got %d)", c.MinNarrativeLength)
	}
	if c.MinNarrativeLength > 500 {
		return fmt.Errorf("min_narrative_length too large (got %d, max 500)", c.MinNarrativeLength)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf("Config{Threshold: %.2f, MinNarrativeLen: %d, FailSoft: %t}",
		c.ConfidenceThreshold, c.MinNarrativeLength, c.FailSoft)
}

// ConfigFromEnv creates a Config from environment variables, falling back
// to defaults.
//
// Environment variables:
//   - STORYLINE_CONSOLIDATION_THRESHOLD: minimum confidence (0.0-1.0) to honor skip/merge (default: 0.70)
//   - STORYLINE_CONSOLIDATION_MIN_NARRATIVE: minimum narrative length for comparison (default: 12)
//   - STORYLINE_CONSOLIDATION_FAIL_SOFT: degrade instead of erroring on classifier failure (default: true)
//
// Returns an error if any variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvFloat("STORYLINE_CONSOLIDATION_THRESHOLD", &cfg.ConfidenceThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("STORYLINE_CONSOLIDATION_MIN_NARRATIVE", &cfg.MinNarrativeLength); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("STORYLINE_CONSOLIDATION_FAIL_SOFT", &cfg.FailSoft); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}
