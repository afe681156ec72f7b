// ABOUTME: HTTP API surface for authentication, tokens, and OTP management
// ABOUTME: Routes are mounted on a ServeMux with per-route auth middleware

package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/drawbridgehq/drawbridge/internal/auth"
	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/otp"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

// API handles the /v3 auth routes.
type API struct {
	store      store.Store
	cfg        config.APIConfig
	resolver   *auth.Resolver
	registry   *otp.Registry
	challenges *auth.ChallengeIssuer
	logger     *slog.Logger
}

// New creates the API handler. challenges may be nil when no JWT secret is
// configured; step-up login is then unavailable.
func New(s store.Store, cfg config.APIConfig, resolver *auth.Resolver, registry *otp.Registry, challenges *auth.ChallengeIssuer) *API {
	return &API{
		store:      s,
		cfg:        cfg,
		resolver:   resolver,
		registry:   registry,
		challenges: challenges,
		logger:     slog.Default().With("component", "api"),
	}
}

// RegisterRoutes registers all auth routes on the given mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	// Public routes (no auth required)
	mux.HandleFunc("POST /v3/auth/login", a.handleLogin)
	mux.HandleFunc("POST /v3/auth/login/otp", a.handleLoginOTP)
	mux.HandleFunc("POST /v3/auth/signup", a.handleSignup)
	mux.HandleFunc("POST /v3/auth/session", a.handleGuestSession)

	// Protected routes (auth required)
	mux.Handle("POST /v3/auth/logout", a.requireAuth(a.handleLogout))
	mux.Handle("GET /v3/me", a.requireAuth(a.handleMe))

	// Access tokens
	mux.Handle("GET /v3/auth/tokens", a.requireAuth(a.handleTokensList))
	mux.Handle("POST /v3/auth/tokens", a.requireAuth(a.handleTokenCreate))
	mux.Handle("DELETE /v3/auth/tokens/{id}", a.requireAuth(a.handleTokenDelete))

	// Second factor
	mux.Handle("GET /v3/auth/otp", a.requireAuth(a.handleOTPList))
	mux.Handle("GET /v3/auth/otp/{provider}", a.requireAuth(a.handleOTPData))
	mux.Handle("POST /v3/auth/otp/{provider}", a.requireAuth(a.handleOTPEnable))
	mux.Handle("DELETE /v3/auth/otp/{provider}", a.requireAuth(a.handleOTPDisable))
	mux.Handle("GET /v3/auth/otp/{provider}/verify", a.requireAuth(a.handleOTPBeginVerify))
	mux.Handle("POST /v3/auth/otp/{provider}/verify", a.requireAuth(a.handleOTPVerify))
}

// requireAuth wraps a handler with the credential-resolving middleware.
func (a *API) requireAuth(h http.HandlerFunc) http.Handler {
	return auth.Middleware(a.resolver, a.cfg.CookieName)(h)
}

// writeJSON writes a JSON response with the given status.
func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error body with the given status.
func (a *API) writeError(w http.ResponseWriter, status int, code string) {
	a.writeJSON(w, status, map[string]string{"error": code})
}

// generateSecureToken returns a hex-encoded random token of byteLen bytes.
func generateSecureToken(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
