// Package config loads elfconv's YAML defaults file. Adapted from the
// teacher's pkg/config/config.go: same Config/DefaultConfig/LoadConfig
// shape over gopkg.in/yaml.v3, with the server/security fields this
// domain has no use for replaced by the converter's own knobs.
package config

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config holds elfconv's configurable defaults, overridable per
// invocation by CLI flags.
type Config struct {
	DefaultLogSize uint32  `yaml:"default_log_size"`
	FsyncOnAppend  bool    `yaml:"fsync_on_append"`
	DefaultOverwrite bool  `yaml:"default_overwrite"`
	Logging        Logging `yaml:"logging"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns elfconv's built-in defaults: a 1 MiB log, no
// implicit overwrite, and info-level logging.
func DefaultConfig() *Config {
	return &Config{
		DefaultLogSize:   1 << 20,
		FsyncOnAppend:    false,
		DefaultOverwrite: false,
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.Newf("config: file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, errors.Wrap(err, "config: invalid path")
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "config: read failed")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "config: parse failed")
	}
	return config, nil
}

// SaveConfig writes config to configPath, creating its directory if
// needed.
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return errors.Wrap(err, "config: mkdir failed")
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "config: marshal failed")
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.Wrap(err, "config: write failed")
	}
	return nil
}

// GetDefaultConfigPath returns elfconv's default configuration path:
// ~/.config/elfconv/config.yaml, falling back to a relative path if
// the home directory cannot be resolved.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./elfconv.yaml"
	}
	return filepath.Join(homeDir, ".config", "elfconv", "config.yaml")
}

// ConfigExists reports whether a configuration file exists at path.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
