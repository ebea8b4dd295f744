// Package config loads the YAML configuration documents for the
// cache, arbiter, and bus components.
package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// validator is implemented by every component Config type this
// package loads.
type validator interface {
	Validate() error
}

// Load reads the YAML document at path into a zero-valued T, then
// validates it. Callers should seed T's fields with their package's
// DefaultConfig before calling Load if they want YAML to only
// override a subset of fields; Load itself applies no defaults.
func Load[T validator](path string) (T, error) {
	var cfg T

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadInto reads the YAML document at path, merging it on top of the
// already-populated defaults, then validates the result. Use this when
// a partial YAML document should only override some of a component's
// defaulted fields.
func LoadInto[T validator](path string, defaults T) (T, error) {
	cfg := defaults
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}
