// ABOUTME: Access token management endpoints (list, create, revoke)
// ABOUTME: Token-authenticated callers need auth scopes; sessions hold the catch-all

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/drawbridgehq/drawbridge/internal/auth"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

type tokenResponse struct {
	ID         int64     `json:"id"`
	Token      string    `json:"token"`
	Comment    string    `json:"comment,omitempty"`
	Scopes     []string  `json:"scopes,omitempty"`
	LastUsedAt time.Time `json:"lastUsedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

func tokenToResponse(t *store.AccessToken) tokenResponse {
	return tokenResponse{
		ID:         t.ID,
		Token:      t.Token,
		Comment:    t.Comment,
		Scopes:     t.Scopes,
		LastUsedAt: t.LastUsedAt,
		CreatedAt:  t.CreatedAt,
	}
}

// requireUserScope resolves the acting user and checks the credential scope.
// Guests have no user id and no scopes, so they fail here.
func (a *API) requireUserScope(w http.ResponseWriter, r *http.Request, scope string) (int64, bool) {
	p := auth.MustFromContext(r.Context())
	userID, ok := p.UserID()
	if !ok {
		a.writeError(w, http.StatusForbidden, "user-required")
		return 0, false
	}
	if err := auth.RequireScope(p, scope); err != nil {
		a.writeError(w, http.StatusForbidden, "scope-required")
		return 0, false
	}
	return userID, true
}

// handleTokensList lists the caller's access tokens.
func (a *API) handleTokensList(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUserScope(w, r, "auth:read")
	if !ok {
		return
	}

	tokens, err := a.store.ListAccessTokens(r.Context(), userID)
	if err != nil {
		a.logger.Error("token list failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	out := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, tokenToResponse(t))
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"list": out, "total": len(out)})
}

type tokenCreateRequest struct {
	Comment string   `json:"comment"`
	Scopes  []string `json:"scopes,omitempty"`
}

// handleTokenCreate mints a new access token for the caller.
func (a *API) handleTokenCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUserScope(w, r, "auth:write")
	if !ok {
		return
	}

	var req tokenCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-request")
		return
	}

	value, err := generateSecureToken(32)
	if err != nil {
		a.logger.Error("token generation failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	token := &store.AccessToken{
		Token:   value,
		UserID:  userID,
		Comment: req.Comment,
		Scopes:  req.Scopes,
	}
	if err := a.store.CreateAccessToken(r.Context(), token); err != nil {
		a.logger.Error("token create failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	a.logger.Info("access token created", "user_id", userID, "token_id", token.ID)
	a.writeJSON(w, http.StatusCreated, tokenToResponse(token))
}

// handleTokenDelete revokes one of the caller's tokens. Tokens belonging to
// other users are indistinguishable from absent ones.
func (a *API) handleTokenDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := a.requireUserScope(w, r, "auth:write")
	if !ok {
		return
	}

	tokenID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid-token-id")
		return
	}

	if err := a.store.DeleteAccessToken(r.Context(), tokenID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.writeError(w, http.StatusNotFound, "token-not-found")
			return
		}
		a.logger.Error("token delete failed", "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal-error")
		return
	}

	a.logger.Info("access token revoked", "user_id", userID, "token_id", tokenID)
	w.WriteHeader(http.StatusNoContent)
}
