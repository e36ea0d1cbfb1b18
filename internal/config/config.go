package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/altafino/attachment-store/internal/types"
	"github.com/altafino/attachment-store/internal/validation"
)

// Override adjusts a loaded configuration before it is validated,
// e.g. with command line flags
type Override func(cfg *types.Config)

// Load reads the configuration file at path, fills in defaults, applies the
// overrides and validates the result. An empty path yields the defaults.
func Load(path string, overrides ...Override) (*types.Config, error) {
	cfg := &types.Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := ApplyDefaults(cfg); err != nil {
		return nil, err
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := validation.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOptional behaves like Load but falls back to the defaults when the
// file does not exist
func LoadOptional(path string, overrides ...Override) (*types.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return Load(path, overrides...)
}

// Parse decodes YAML into cfg after expanding environment variables
func Parse(data []byte, cfg *types.Config) error {
	// Expand environment variables in the config file
	expandedData := os.ExpandEnv(string(data))

	return yaml.Unmarshal([]byte(expandedData), cfg)
}
