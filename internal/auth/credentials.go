// ABOUTME: Raw credential extraction from incoming HTTP requests
// ABOUTME: Reads the session cookie and Authorization bearer header, no validation

package auth

import (
	"net/http"
	"strings"
)

// Strategy names. They appear in challenge headers and structured results,
// in attempt order: session first, then bearer token.
const (
	StrategySession = "Session"
	StrategyToken   = "Token"
)

// Credentials holds the raw credential material extracted from a request.
// A request may carry zero, one, or both values. Extraction performs no
// validation.
type Credentials struct {
	// SessionID is the value of the session cookie, if present.
	SessionID string
	// Token is the bearer token from the Authorization header, if present.
	Token string
}

// HasSession reports whether a session cookie value was present.
func (c Credentials) HasSession() bool { return c.SessionID != "" }

// HasToken reports whether a bearer token was present.
func (c Credentials) HasToken() bool { return c.Token != "" }

// ExtractCredentials reads the raw credentials from a request. cookieName is
// the configured session cookie name.
func ExtractCredentials(r *http.Request, cookieName string) Credentials {
	var creds Credentials

	if cookie, err := r.Cookie(cookieName); err == nil {
		creds.SessionID = cookie.Value
	}

	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := parseBearerHeader(header); ok {
			creds.Token = token
		}
	}

	return creds
}

// parseBearerHeader extracts the token from an "Authorization: Bearer x"
// header value. The scheme comparison is case-insensitive per RFC 7235.
func parseBearerHeader(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
