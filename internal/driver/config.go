// Package driver orchestrates backend runs for the CLI: it loads the
// project manifest, decodes serialized ASTs, runs the pipeline per input
// (several inputs concurrently) and renders results. The core pipeline
// itself stays strictly sequential per input.
package driver

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultConfigName is the manifest looked up next to the inputs.
const DefaultConfigName = "smelt.toml"

// Config is the project manifest.
type Config struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
	Build struct {
		// NamedLabels gives function entry labels their source names.
		NamedLabels bool `toml:"named_labels"`
		// MaxDiagnostics caps how many diagnostics one run reports.
		MaxDiagnostics int `toml:"max_diagnostics"`
		// Validate runs the DFG validator after lowering.
		Validate bool `toml:"validate"`
	} `toml:"build"`
}

// DefaultConfig returns the configuration used when no manifest exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Build.NamedLabels = true
	cfg.Build.MaxDiagnostics = 100
	return cfg
}

// LoadConfig reads a manifest; a missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("driver: read config: %w", err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("driver: parse %s: %w", path, err)
	}
	if cfg.Build.MaxDiagnostics <= 0 {
		cfg.Build.MaxDiagnostics = 100
	}
	return cfg, nil
}
