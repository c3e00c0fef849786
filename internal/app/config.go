package app

import (
	"errors"
	"fmt"

	"github.com/vk/oceanbaselines/internal/stage"
)

// Config holds the options a caller (normally the CLI) sets for a run.
// Empty strings mean "not set here": the config file, then the defaults,
// fill them in.
type Config struct {
	OutDir      string
	Prefix      string
	CacheRoot   string
	BathySource string
	ConfigPaths []string // hcl files or directories
	Regions     []string // restrict the catalog to these names
	Stages      stage.Set

	LogFormat  string
	LogLevel   string
	NoManifest bool
	// Verify checks an existing output directory against its manifest
	// instead of generating anything.
	Verify bool
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Verify && cfg.NoManifest {
		return nil, errors.New("verify needs the manifest: drop no-manifest")
	}
	if cfg.Stages == 0 {
		return nil, errors.New("at least one stage must be enabled")
	}
	for _, name := range cfg.Regions {
		if name == "" {
			return nil, errors.New("region names must not be empty")
		}
	}
	return &cfg, nil
}
