// ABOUTME: Login, signup, guest session, logout, and identity handlers
// ABOUTME: Password checks use bcrypt; second-factor logins go through step-up challenges

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/drawbridgehq/drawbridge/internal/auth"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	OTP        string `json:"otp,omitempty"`
}

type sessionResponse struct {
	SessionID   string `json:"sessionId"`
	UserID      int64  `json:"userId,omitempty"`
	OTPVerified bool   `json:"otpVerified,omitempty"`
}

// handleLogin authenticates email+password and opens a session. Accounts with
// an active second factor must supply a valid code inline, or complete the
// step-up flow with the challenge token returned here.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-request")
		return
	}
	if req.Email == "" || req.Password == "" {
		a.writeError(w, http.StatusBadRequest, "missing-credentials")
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		a.writeError(w, http.StatusUnauthorized, "invalid-credentials")
		return
	}
	if err != nil {
		a.logger.Error("user lookup failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	// Tombstoned accounts look exactly like unknown accounts from outside.
	if user.Deleted() {
		a.writeError(w, http.StatusUnauthorized, "invalid-credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PwdHash), []byte(req.Password)) != nil {
		a.logger.Debug("password mismatch", "user_id", user.ID)
		a.writeError(w, http.StatusUnauthorized, "invalid-credentials")
		return
	}

	otpRequired, err := a.registry.EnabledForUser(r.Context(), user.ID)
	if err != nil {
		a.logger.Error("otp enrollment check failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	otpVerified := false
	if otpRequired {
		if req.OTP != "" {
			ok, err := a.registry.Verify(r.Context(), user.ID, req.OTP)
			if err != nil {
				a.logger.Error("otp verification failed", "error", err)
				a.writeError(w, http.StatusInternalServerError, "internal-error")
				return
			}
			if !ok {
				a.writeError(w, http.StatusUnauthorized, "invalid-otp")
				return
			}
			otpVerified = true
		} else {
			// Password checked out but the second factor is pending. Hand out
			// a short-lived challenge token to finish via /login/otp.
			if a.challenges == nil {
				a.writeError(w, http.StatusUnauthorized, "otp-required")
				return
			}
			token, err := a.challenges.Issue(user.ID)
			if err != nil {
				a.logger.Error("challenge issue failed", "error", err)
				a.writeError(w, http.StatusInternalServerError, "internal-error")
				return
			}
			a.writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error":          "otp-required",
				"challengeToken": token,
			})
			return
		}
	}

	a.openSession(w, r, user.ID, req.RememberMe, otpVerified)
}

type loginOTPRequest struct {
	ChallengeToken string `json:"challengeToken"`
	OTP            string `json:"otp"`
	RememberMe     bool   `json:"rememberMe"`
}

// handleLoginOTP completes a step-up login: the challenge token proves the
// password already checked out, the code proves the second factor.
func (a *API) handleLoginOTP(w http.ResponseWriter, r *http.Request) {
	if a.challenges == nil {
		a.writeError(w, http.StatusNotFound, "otp-login-unavailable")
		return
	}

	var req loginOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-request")
		return
	}
	if req.ChallengeToken == "" || req.OTP == "" {
		a.writeError(w, http.StatusBadRequest, "missing-credentials")
		return
	}

	userID, err := a.challenges.Verify(req.ChallengeToken)
	if err != nil {
		a.logger.Debug("challenge rejected", "error", err)
		a.writeError(w, http.StatusUnauthorized, "invalid-challenge")
		return
	}

	user, err := a.store.GetUser(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		a.writeError(w, http.StatusUnauthorized, "invalid-credentials")
		return
	}
	if err != nil {
		a.logger.Error("user lookup failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	if user.Deleted() {
		a.writeError(w, http.StatusUnauthorized, "invalid-credentials")
		return
	}

	ok, err := a.registry.Verify(r.Context(), user.ID, req.OTP)
	if err != nil {
		a.logger.Error("otp verification failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}
	if !ok {
		a.writeError(w, http.StatusUnauthorized, "invalid-otp")
		return
	}

	a.openSession(w, r, user.ID, req.RememberMe, true)
}

// openSession creates a session for the user, sets the cookie, and writes the
// session response.
func (a *API) openSession(w http.ResponseWriter, r *http.Request, userID int64, persistent, otpVerified bool) {
	data := map[string]string{}
	if otpVerified {
		data[auth.SessionDataOTPVerified] = "true"
	}

	session := &store.Session{
		ID:         uuid.NewString(),
		UserID:     &userID,
		Persistent: persistent,
		Data:       data,
	}
	if err := a.store.CreateSession(r.Context(), session); err != nil {
		a.logger.Error("session create failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	a.logger.Info("login", "user_id", userID, "persistent", persistent)
	http.SetCookie(w, auth.SessionCookie(a.cfg, session.ID, persistent))
	a.writeJSON(w, http.StatusOK, sessionResponse{
		SessionID:   session.ID,
		UserID:      userID,
		OTPVerified: otpVerified,
	})
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Language string `json:"language,omitempty"`
}

// handleSignup registers a new account in the pending role and opens a
// session for it.
func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !a.cfg.SignupEnabled {
		a.writeError(w, http.StatusForbidden, "signup-disabled")
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-request")
		return
	}
	if !strings.Contains(req.Email, "@") {
		a.writeError(w, http.StatusBadRequest, "invalid-email")
		return
	}
	if len(req.Password) < 8 {
		a.writeError(w, http.StatusBadRequest, "password-too-short")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.logger.Error("password hash failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	activateToken, err := generateSecureToken(16)
	if err != nil {
		a.logger.Error("activate token generation failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	language := req.Language
	if language == "" {
		language = "en-US"
	}

	user := &store.User{
		Email:         req.Email,
		PwdHash:       string(hash),
		Role:          store.RolePending,
		Language:      language,
		ActivateToken: &activateToken,
	}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			a.writeError(w, http.StatusConflict, "email-already-exists")
			return
		}
		a.logger.Error("user create failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	a.logger.Info("signup", "user_id", user.ID)
	a.openSession(w, r, user.ID, false, false)
}

// handleGuestSession hands the client a session. An existing valid session
// is reused; otherwise a fresh guest session with no backing user is created.
func (a *API) handleGuestSession(w http.ResponseWriter, r *http.Request) {
	creds := auth.ExtractCredentials(r, a.cfg.CookieName)
	if creds.HasSession() {
		session, err := a.store.GetSession(r.Context(), creds.SessionID)
		if err == nil {
			http.SetCookie(w, auth.SessionCookie(a.cfg, session.ID, session.Persistent))
			a.writeJSON(w, http.StatusOK, sessionResponse{SessionID: session.ID})
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Error("session lookup failed", "error", err)
			a.writeError(w, http.StatusInternalServerError, "internal-error")
			return
		}
	}

	session := &store.Session{
		ID:   uuid.NewString(),
		Data: map[string]string{},
	}
	if err := a.store.CreateSession(r.Context(), session); err != nil {
		a.logger.Error("session create failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	a.logger.Info("guest session created", "session_id", session.ID)
	http.SetCookie(w, auth.SessionCookie(a.cfg, session.ID, false))
	a.writeJSON(w, http.StatusCreated, sessionResponse{SessionID: session.ID})
}

// handleLogout deletes the current session and clears the cookie. Only
// session-authenticated principals can log out; tokens are revoked via the
// token endpoints instead.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())
	if p.SessionID == "" {
		a.writeError(w, http.StatusBadRequest, "session-required")
		return
	}

	if err := a.store.DeleteSession(r.Context(), p.SessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Error("session delete failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	a.logger.Info("logout", "session_id", p.SessionID)
	http.SetCookie(w, auth.ClearSessionCookie(a.cfg))
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	Kind        string   `json:"kind"`
	ID          int64    `json:"id,omitempty"`
	Email       string   `json:"email,omitempty"`
	Role        string   `json:"role,omitempty"`
	Language    string   `json:"language,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	OTPRequired bool     `json:"otpRequired,omitempty"`
	OTPVerified bool     `json:"otpVerified,omitempty"`
}

// handleMe describes the resolved principal.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p := auth.MustFromContext(r.Context())

	resp := meResponse{
		Kind:        string(p.Kind),
		ID:          p.ID,
		Email:       p.Email,
		Role:        p.Role,
		Language:    p.Language,
		Strategy:    p.Strategy,
		Scopes:      p.Scopes,
		OTPRequired: p.OTPRequired,
		OTPVerified: p.OTPVerified,
	}
	if p.IsGuest() {
		resp.Role = "guest"
	}
	a.writeJSON(w, http.StatusOK, resp)
}
