package common

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config holds the connection settings shared by every subcommand.
type Config struct {
	SID       string `koanf:"sid"`
	Instance  string `koanf:"instance"`
	Password  string `koanf:"password"`
	Remote    string `koanf:"remote"`
	Verbosity string `koanf:"verbosity"`
}

// LoadConfig layers configuration from defaults, an optional JSON or YAML
// file, SAPSTEWARD_* environment variables and explicitly set flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"verbosity": Env("LOG_LEVEL", "info"),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// SAPSTEWARD_SID -> sid
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", "":
		return json.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	}
	return nil, fmt.Errorf("%w: unsupported config file type %q", ErrValidation, filepath.Ext(path))
}

// Missing lists the required keys that are still empty.
func (c *Config) Missing() []string {
	var missing []string
	if c.SID == "" {
		missing = append(missing, "sid")
	}
	if c.Instance == "" {
		missing = append(missing, "instance")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

// Identity validates the required keys and builds the instance identity.
func (c *Config) Identity() (Identity, error) {
	if missing := c.Missing(); len(missing) > 0 {
		return Identity{}, fmt.Errorf("%w: configuration must have the sid, instance and password entries (missing: %s)",
			ErrValidation, strings.Join(missing, ", "))
	}
	return NewIdentity(c.SID, c.Instance, c.Password)
}
