// ABOUTME: Session cookie contract for the API
// ABOUTME: Two expiry tiers, HttpOnly, strict same-site, deployment-scoped domain

package auth

import (
	"net/http"
	"time"

	"github.com/drawbridgehq/drawbridge/internal/config"
)

// SessionCookie builds the cookie set after successful authentication.
// Persistent ("remember me") sessions get the long expiry tier.
func SessionCookie(cfg config.APIConfig, sessionID string, persistent bool) *http.Cookie {
	ttl := cfg.SessionTTL
	if persistent {
		ttl = cfg.PersistentSessionTTL
	}

	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ClearSessionCookie builds the expired cookie set on logout.
func ClearSessionCookie(cfg config.APIConfig) *http.Cookie {
	return &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
