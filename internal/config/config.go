// ABOUTME: Configuration loading and parsing for the drawbridge API server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete drawbridge configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	OTP      OTPConfig      `yaml:"otp"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// APIConfig holds the outward-facing API contract: cookie naming and
// session lifetimes.
type APIConfig struct {
	CookieName    string `yaml:"cookie_name"`
	CookieDomain  string `yaml:"cookie_domain"`
	SignupEnabled bool   `yaml:"signup_enabled"`

	SessionTTL           time.Duration `yaml:"-"`
	PersistentSessionTTL time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SessionTTLRaw           string `yaml:"session_ttl"`
	PersistentSessionTTLRaw string `yaml:"persistent_session_ttl"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret signs short-lived OTP step-up challenge tokens.
	JWTSecret string `yaml:"jwt_secret"`
}

// OTPConfig holds second-factor provider configuration. A provider with no
// configuration present is disabled for the deployment.
type OTPConfig struct {
	TOTP        TOTPConfig        `yaml:"totp"`
	SecurityKey SecurityKeyConfig `yaml:"securitykey"`
}

// TOTPConfig holds authenticator-app provider configuration
type TOTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Issuer  string `yaml:"issuer"`
}

// SecurityKeyConfig holds WebAuthn hardware-key provider configuration
type SecurityKeyConfig struct {
	Enabled     bool     `yaml:"enabled"`
	RPID        string   `yaml:"rp_id"`
	RPOrigins   []string `yaml:"rp_origins"`
	DisplayName string   `yaml:"display_name"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default session lifetimes, applied when the config omits them.
const (
	DefaultSessionTTL           = 30 * 24 * time.Hour
	DefaultPersistentSessionTTL = 90 * 24 * time.Hour
)

// DefaultCookieName is used when api.cookie_name is not set.
const DefaultCookieName = "DW-SESSION"

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in fallback values for optional fields.
func (c *Config) applyDefaults() {
	if c.API.CookieName == "" {
		c.API.CookieName = DefaultCookieName
	}
	if c.API.SessionTTL == 0 {
		c.API.SessionTTL = DefaultSessionTTL
	}
	if c.API.PersistentSessionTTL == 0 {
		c.API.PersistentSessionTTL = DefaultPersistentSessionTTL
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.OTP.TOTP.Enabled && c.OTP.TOTP.Issuer == "" {
		return fmt.Errorf("otp.totp.issuer is required when totp is enabled")
	}

	if c.OTP.SecurityKey.Enabled {
		if c.OTP.SecurityKey.RPID == "" {
			return fmt.Errorf("otp.securitykey.rp_id is required when securitykey is enabled")
		}
		if len(c.OTP.SecurityKey.RPOrigins) == 0 {
			return fmt.Errorf("otp.securitykey.rp_origins is required when securitykey is enabled")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.API.SessionTTLRaw != "" {
		cfg.API.SessionTTL, err = time.ParseDuration(cfg.API.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.API.SessionTTLRaw, err)
		}
	}

	if cfg.API.PersistentSessionTTLRaw != "" {
		cfg.API.PersistentSessionTTL, err = time.ParseDuration(cfg.API.PersistentSessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing persistent_session_ttl %q: %w", cfg.API.PersistentSessionTTLRaw, err)
		}
	}

	return nil
}
