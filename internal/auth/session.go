// ABOUTME: Session cookie verification strategy
// ABOUTME: Resolves a session id into a user or guest principal, refreshing last_action_time

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

// SessionVerifier authenticates requests by session id.
type SessionVerifier struct {
	sessions SessionStore
	users    UserStore
	logger   *slog.Logger
}

// NewSessionVerifier creates a session verifier over the given stores.
func NewSessionVerifier(sessions SessionStore, users UserStore) *SessionVerifier {
	return &SessionVerifier{
		sessions: sessions,
		users:    users,
		logger:   slog.Default().With("component", "auth", "strategy", StrategySession),
	}
}

// Name returns the strategy name.
func (v *SessionVerifier) Name() string { return StrategySession }

// Verify looks up the session and resolves its user reference.
//
// Every successful lookup refreshes last_action_time, regardless of the
// downstream outcome. A session with no user reference yields a guest
// principal; a tombstoned user fails exactly like an unknown session.
func (v *SessionVerifier) Verify(ctx context.Context, sessionID string) (*Result, error) {
	session, err := v.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		v.logger.Debug("session not found")
		return invalid(StrategySession, reasonCredentialNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if err := v.sessions.TouchSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	if session.UserID == nil {
		return &Result{
			Valid:     true,
			Strategy:  StrategySession,
			Principal: Guest(session.ID, session.Data),
		}, nil
	}

	user, err := v.users.GetUser(ctx, *session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		v.logger.Warn("session references missing user", "user_id", *session.UserID)
		return invalid(StrategySession, reasonCredentialNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session user: %w", err)
	}

	if user.Deleted() {
		v.logger.Debug("session user is tombstoned", "user_id", user.ID)
		return invalid(StrategySession, reasonAccountTombstoned), nil
	}

	return &Result{
		Valid:    true,
		Strategy: StrategySession,
		Principal: &Principal{
			Kind:               KindUser,
			ID:                 user.ID,
			Email:              user.Email,
			Role:               user.Role,
			Language:           user.Language,
			ActivateToken:      user.ActivateToken,
			ResetPasswordToken: user.ResetPasswordToken,
			Strategy:           StrategySession,
			SessionID:          session.ID,
			SessionData:        session.Data,
			Scopes:             []string{ScopeAll},
		},
	}, nil
}

// Ensure SessionVerifier implements Verifier.
var _ Verifier = (*SessionVerifier)(nil)
