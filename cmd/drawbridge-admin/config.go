// ABOUTME: Configuration loading for the drawbridge admin CLI
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Output   OutputConfig   `toml:"output"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type OutputConfig struct {
	Color bool `toml:"color"`
}

// configPath returns the admin config file path.
// Priority: DRAWBRIDGE_ADMIN_CONFIG > XDG_CONFIG_HOME/drawbridge/admin.toml > ~/.config/drawbridge/admin.toml
func configPath() string {
	if envPath := os.Getenv("DRAWBRIDGE_ADMIN_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "admin.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "drawbridge", "admin.toml")
}

// loadConfig reads the config file, expanding environment variables. The
// DRAWBRIDGE_DB env var overrides the configured database path.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Output: OutputConfig{Color: true}}

	data, err := os.ReadFile(path)
	if err == nil {
		expanded := expandEnvVars(string(data))
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if envDB := os.Getenv("DRAWBRIDGE_DB"); envDB != "" {
		cfg.Database.Path = envDB
	}

	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("database.path is required (set it in %s or via DRAWBRIDGE_DB)", path)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
