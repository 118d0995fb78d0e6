package config

import "fmt"

// Load builds a Config with precedence defaults < environment < flags,
// then validates the result.
func Load() (*Config, error) {
	registerFlags()

	cfg := defaultConfig()

	loadFromEnvironment(cfg)
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
