// ABOUTME: Second-factor management endpoints over the provider registry
// ABOUTME: Enrollment, enable/disable, and in-session verification flows

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/drawbridgehq/drawbridge/internal/auth"
	"github.com/drawbridgehq/drawbridge/internal/otp"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

// challengeVerifier is implemented by providers whose verification starts
// with a server-issued challenge (hardware keys).
type challengeVerifier interface {
	BeginVerify(ctx context.Context, userID int64) (*otp.EnrollmentData, error)
}

// requireUserAndProvider resolves the acting user and the provider named in
// the path. Unknown or deployment-disabled providers are a 404.
func (a *API) requireUserAndProvider(w http.ResponseWriter, r *http.Request) (int64, otp.Provider, bool) {
	userID, ok := a.requireUserScope(w, r, "auth:write")
	if !ok {
		return 0, nil, false
	}

	provider, ok := a.registry.Get(r.PathValue("provider"))
	if !ok {
		a.writeError(w, http.StatusNotFound, "unknown-provider")
		return 0, nil, false
	}
	return userID, provider, true
}

type otpProviderStatus struct {
	ID             string `json:"id"`
	EnabledForUser bool   `json:"enabledForUser"`
}

// handleOTPList reports each deployment-enabled provider and whether the
// caller is enrolled with it.
func (a *API) handleOTPList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUserScope(w, r, "auth:read")
	if !ok {
		return
	}

	providers := a.registry.List()
	out := make([]otpProviderStatus, 0, len(providers))
	for _, p := range providers {
		enrolled, err := p.EnabledForUser(r.Context(), userID)
		if err != nil {
			a.logger.Error("enrollment check failed", "provider", p.ID(), "error", err)
			a.writeError(w, http.StatusInternalServerError, "internal-error")
			return
		}
		out = append(out, otpProviderStatus{ID: p.ID(), EnabledForUser: enrolled})
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"list": out, "total": len(out)})
}

// handleOTPData returns fresh enrollment material for a provider.
func (a *API) handleOTPData(w http.ResponseWriter, r *http.Request) {
	userID, provider, ok := a.requireUserAndProvider(w, r)
	if !ok {
		return
	}

	data, err := provider.Data(r.Context(), userID)
	if err != nil {
		a.logger.Error("enrollment data failed", "provider", provider.ID(), "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	a.writeJSON(w, http.StatusOK, data)
}

// handleOTPEnable activates a provider for the caller. The payload must prove
// possession (a current code, or a completed challenge response).
func (a *API) handleOTPEnable(w http.ResponseWriter, r *http.Request) {
	userID, provider, ok := a.requireUserAndProvider(w, r)
	if !ok {
		return
	}

	var req otp.EnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-request")
		return
	}

	if err := provider.Enable(r.Context(), userID, req); err != nil {
		if errors.Is(err, otp.ErrInvalidOTP) {
			a.writeError(w, http.StatusUnauthorized, "invalid-otp")
			return
		}
		a.logger.Error("otp enable failed", "provider", provider.ID(), "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOTPDisable removes the caller's enrollment. Idempotent.
func (a *API) handleOTPDisable(w http.ResponseWriter, r *http.Request) {
	userID, provider, ok := a.requireUserAndProvider(w, r)
	if !ok {
		return
	}

	if err := provider.Disable(r.Context(), userID); err != nil {
		a.logger.Error("otp disable failed", "provider", provider.ID(), "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOTPBeginVerify starts a challenge-response verification for providers
// that need one. Code-based providers have nothing to begin and answer 404.
func (a *API) handleOTPBeginVerify(w http.ResponseWriter, r *http.Request) {
	userID, provider, ok := a.requireUserAndProvider(w, r)
	if !ok {
		return
	}

	cv, ok := provider.(challengeVerifier)
	if !ok {
		a.writeError(w, http.StatusNotFound, "challenge-not-supported")
		return
	}

	data, err := cv.BeginVerify(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.writeError(w, http.StatusNotFound, "not-enrolled")
			return
		}
		a.logger.Error("begin verify failed", "provider", provider.ID(), "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	a.writeJSON(w, http.StatusOK, data)
}

type otpVerifyRequest struct {
	OTP string `json:"otp"`
}

// handleOTPVerify checks a code against one provider and, on success, marks
// the current session as second-factor verified for its remaining lifetime.
func (a *API) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	userID, provider, ok := a.requireUserAndProvider(w, r)
	if !ok {
		return
	}

	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-request")
		return
	}

	verified, err := provider.Verify(r.Context(), userID, req.OTP)
	if err != nil {
		a.logger.Error("otp verify failed", "provider", provider.ID(), "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	if !verified {
		a.writeError(w, http.StatusUnauthorized, "invalid-otp")
		return
	}

	p := auth.MustFromContext(r.Context())
	if p.SessionID != "" {
		data := map[string]string{}
		for k, v := range p.SessionData {
			data[k] = v
		}
		data[auth.SessionDataOTPVerified] = "true"
		if err := a.store.UpdateSessionData(r.Context(), p.SessionID, data); err != nil {
			a.logger.Error("session update failed", "error", err)
			a.writeError(w, http.StatusInternalServerError, "internal-error")
			return
		}
	}

	a.logger.Info("second factor verified", "user_id", userID, "provider", provider.ID())
	w.WriteHeader(http.StatusNoContent)
}
