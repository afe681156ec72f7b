// ABOUTME: Tests for configuration loading and validation
// ABOUTME: Covers YAML parsing, env var expansion, durations, and defaults

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "drawbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: /var/lib/drawbridge/drawbridge.db
api:
  cookie_name: DW-SESSION
  cookie_domain: api.example.com
  signup_enabled: true
  session_ttl: 720h
  persistent_session_ttl: 2160h
auth:
  jwt_secret: super-secret
otp:
  totp:
    enabled: true
    issuer: Drawbridge
  securitykey:
    enabled: true
    rp_id: example.com
    rp_origins:
      - https://example.com
logging:
  level: debug
  format: json
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":8080")
	}
	if cfg.API.CookieName != "DW-SESSION" {
		t.Errorf("CookieName = %q, want %q", cfg.API.CookieName, "DW-SESSION")
	}
	if cfg.API.SessionTTL != 720*time.Hour {
		t.Errorf("SessionTTL = %v, want %v", cfg.API.SessionTTL, 720*time.Hour)
	}
	if cfg.API.PersistentSessionTTL != 2160*time.Hour {
		t.Errorf("PersistentSessionTTL = %v, want %v", cfg.API.PersistentSessionTTL, 2160*time.Hour)
	}
	if !cfg.OTP.TOTP.Enabled || cfg.OTP.TOTP.Issuer != "Drawbridge" {
		t.Errorf("TOTP config = %+v, want enabled with issuer Drawbridge", cfg.OTP.TOTP)
	}
	if cfg.OTP.SecurityKey.RPID != "example.com" {
		t.Errorf("RPID = %q, want %q", cfg.OTP.SecurityKey.RPID, "example.com")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: test.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.CookieName != DefaultCookieName {
		t.Errorf("CookieName = %q, want default %q", cfg.API.CookieName, DefaultCookieName)
	}
	if cfg.API.SessionTTL != DefaultSessionTTL {
		t.Errorf("SessionTTL = %v, want default %v", cfg.API.SessionTTL, DefaultSessionTTL)
	}
	if cfg.API.PersistentSessionTTL != DefaultPersistentSessionTTL {
		t.Errorf("PersistentSessionTTL = %v, want default %v", cfg.API.PersistentSessionTTL, DefaultPersistentSessionTTL)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("DRAWBRIDGE_TEST_SECRET", "expanded-secret")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: test.db
auth:
  jwt_secret: ${DRAWBRIDGE_TEST_SECRET}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "expanded-secret")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: test.db
auth:
  jwt_secret: "${DRAWBRIDGE_DEFINITELY_UNSET_VAR}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Auth.JWTSecret != "" {
		t.Errorf("JWTSecret = %q, want empty string for unset var", cfg.Auth.JWTSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("Load should fail for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid: yaml")
	if _, err := Load(path); err == nil {
		t.Fatal("Load should fail for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: test.db
api:
  session_ttl: thirty-days
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load should fail for invalid duration")
	}
	if !strings.Contains(err.Error(), "session_ttl") {
		t.Errorf("error %q should mention session_ttl", err)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing http addr",
			content: "database:\n  path: test.db\n",
			wantErr: "server.http_addr",
		},
		{
			name:    "missing database path",
			content: "server:\n  http_addr: \":8080\"\n",
			wantErr: "database.path",
		},
		{
			name: "totp enabled without issuer",
			content: `
server:
  http_addr: ":8080"
database:
  path: test.db
otp:
  totp:
    enabled: true
`,
			wantErr: "otp.totp.issuer",
		},
		{
			name: "securitykey enabled without rp_id",
			content: `
server:
  http_addr: ":8080"
database:
  path: test.db
otp:
  securitykey:
    enabled: true
    rp_origins: ["https://example.com"]
`,
			wantErr: "otp.securitykey.rp_id",
		},
		{
			name: "securitykey enabled without origins",
			content: `
server:
  http_addr: ":8080"
database:
  path: test.db
otp:
  securitykey:
    enabled: true
    rp_id: example.com
`,
			wantErr: "otp.securitykey.rp_origins",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load should have failed")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EXPAND_A", "alpha")
	t.Setenv("EXPAND_B", "beta")

	tests := []struct {
		in   string
		want string
	}{
		{"no vars here", "no vars here"},
		{"${EXPAND_A}", "alpha"},
		{"${EXPAND_A}-${EXPAND_B}", "alpha-beta"},
		{"${EXPAND_UNSET_XYZ}", ""},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
