// SPDX-License-Identifier: MPL-2.0

// Package config loads and persists modgate's configuration: the default
// instance directory, the downloads directory watched for manual downloads,
// and the per-platform API endpoints.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for config directory paths.
	AppName = "modgate"
	// ConfigFileName is the name of the config file.
	ConfigFileName = "config.toml"

	// EnvConfigDir overrides the config directory (used by tests).
	EnvConfigDir = "MODGATE_CONFIG_DIR"
)

type (
	// PlatformConfig holds the connection settings for one content platform.
	PlatformConfig struct {
		Endpoint string `mapstructure:"endpoint" toml:"endpoint"`
		APIKey   string `mapstructure:"api_key" toml:"api_key,omitempty"`
	}

	// Config is the application configuration.
	Config struct {
		// InstanceDir is the default game instance content is installed into.
		InstanceDir string `mapstructure:"instance_dir" toml:"instance_dir"`

		// DownloadsDir is the default directory watched for manually
		// downloaded blocked content.
		DownloadsDir string `mapstructure:"downloads_dir" toml:"downloads_dir"`

		// LogLevel is one of debug, info, warn, error.
		LogLevel string `mapstructure:"log_level" toml:"log_level"`

		// Platforms maps platform names to their API settings.
		Platforms map[string]PlatformConfig `mapstructure:"platforms" toml:"platforms"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	downloads := ""
	if home, err := os.UserHomeDir(); err == nil {
		downloads = filepath.Join(home, "Downloads")
	}
	return &Config{
		DownloadsDir: downloads,
		LogLevel:     "info",
		Platforms:    map[string]PlatformConfig{},
	}
}

// Dir returns the modgate configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application
// Support, and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
func Dir() (string, error) {
	if override := os.Getenv(EnvConfigDir); override != "" {
		return override, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("determine home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("determine home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Path returns the full path of the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the configuration, layering the config file (when present) and
// MODGATE_* environment variables over the defaults. A missing config file
// is not an error.
func Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("instance_dir", defaults.InstanceDir)
	v.SetDefault("downloads_dir", defaults.DownloadsDir)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("MODGATE")
	v.AutomaticEnv()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Platforms == nil {
		cfg.Platforms = map[string]PlatformConfig{}
	}
	return &cfg, nil
}

// Init writes the default configuration file, failing if one already exists.
func Init() (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
