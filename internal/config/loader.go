package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. DVSTREAM_PORT.
	EnvPrefix = "DVSTREAM_"
	// EnvConfigPath names a YAML file to load when no path is given.
	EnvConfigPath = EnvPrefix + "CONFIG"
)

// LoadOptions selects the file and explicit overrides applied on top of
// the defaults.
type LoadOptions struct {
	// Path is a YAML file. Empty falls back to $DVSTREAM_CONFIG, and no file
	// is read when both are empty.
	Path string
	// Overrides are applied last, keyed like the YAML file.
	Overrides map[string]any
}

// Load layers defaults, file, environment and overrides, then validates.
// Every failure is a *ConfigurationError.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	path := opts.Path
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if ext := strings.ToLower(filepath.Ext(path)); ext != ".yaml" && ext != ".yml" {
			return nil, invalid("config", "file must have .yaml or .yml extension, got %q", ext)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, &ConfigurationError{Field: "config", Reason: "cannot load " + path, Err: err}
		}
	}

	// DVSTREAM_MAX_PACKETS -> max_packets
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, &ConfigurationError{Field: "env", Reason: "cannot read environment", Err: err}
	}

	for key, val := range opts.Overrides {
		if err := k.Set(key, val); err != nil {
			return nil, &ConfigurationError{Field: key, Reason: "cannot apply override", Err: err}
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, &ConfigurationError{Reason: "cannot decode values", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
