// ABOUTME: Tests for raw credential extraction from HTTP requests
// ABOUTME: Covers cookie reading and bearer header parsing edge cases

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractCredentials(t *testing.T) {
	tests := []struct {
		name        string
		cookie      string
		authHeader  string
		wantSession string
		wantToken   string
	}{
		{name: "nothing"},
		{name: "session cookie", cookie: "sess-1", wantSession: "sess-1"},
		{name: "bearer token", authHeader: "Bearer tok-1", wantToken: "tok-1"},
		{name: "both", cookie: "sess-1", authHeader: "Bearer tok-1", wantSession: "sess-1", wantToken: "tok-1"},
		{name: "lowercase scheme", authHeader: "bearer tok-1", wantToken: "tok-1"},
		{name: "wrong scheme", authHeader: "Basic dXNlcjpwYXNz"},
		{name: "scheme only", authHeader: "Bearer"},
		{name: "empty token", authHeader: "Bearer   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v3/me", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "DW-SESSION", Value: tt.cookie})
			}
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}

			creds := ExtractCredentials(r, "DW-SESSION")
			if creds.SessionID != tt.wantSession {
				t.Errorf("SessionID = %q, want %q", creds.SessionID, tt.wantSession)
			}
			if creds.Token != tt.wantToken {
				t.Errorf("Token = %q, want %q", creds.Token, tt.wantToken)
			}
		})
	}
}

func TestExtractCredentialsIgnoresOtherCookies(t *testing.T) {
	r := httptest.NewRequest("GET", "/v3/me", nil)
	r.AddCookie(&http.Cookie{Name: "other-cookie", Value: "sess-1"})

	creds := ExtractCredentials(r, "DW-SESSION")
	if creds.HasSession() {
		t.Error("only the configured cookie name carries the session")
	}
}
