// ABOUTME: Bearer access token verification strategy
// ABOUTME: Resolves a token value into a scoped user principal, refreshing last_used_at

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

// BearerVerifier authenticates requests by access token value.
type BearerVerifier struct {
	tokens TokenStore
	users  UserStore
	logger *slog.Logger
}

// NewBearerVerifier creates a bearer verifier over the given stores.
func NewBearerVerifier(tokens TokenStore, users UserStore) *BearerVerifier {
	return &BearerVerifier{
		tokens: tokens,
		users:  users,
		logger: slog.Default().With("component", "auth", "strategy", StrategyToken),
	}
}

// Name returns the strategy name.
func (v *BearerVerifier) Name() string { return StrategyToken }

// Verify looks up the access token by exact value and resolves its user.
//
// Every match refreshes last_used_at, regardless of the downstream outcome.
// A tombstoned user fails exactly like an unknown token.
func (v *BearerVerifier) Verify(ctx context.Context, tokenValue string) (*Result, error) {
	token, err := v.tokens.GetAccessTokenByValue(ctx, tokenValue)
	if errors.Is(err, store.ErrNotFound) {
		v.logger.Debug("token not found")
		return invalid(StrategyToken, reasonCredentialNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up access token: %w", err)
	}

	if err := v.tokens.TouchAccessToken(ctx, token.ID); err != nil {
		return nil, fmt.Errorf("refreshing access token: %w", err)
	}

	user, err := v.users.GetUser(ctx, token.UserID)
	if errors.Is(err, store.ErrNotFound) {
		v.logger.Warn("token references missing user", "user_id", token.UserID)
		return invalid(StrategyToken, reasonCredentialNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token user: %w", err)
	}

	if user.Deleted() {
		v.logger.Debug("token user is tombstoned", "user_id", user.ID)
		return invalid(StrategyToken, reasonAccountTombstoned), nil
	}

	scopes := token.Scopes
	if len(scopes) == 0 {
		scopes = []string{ScopeAll}
	}

	return &Result{
		Valid:    true,
		Strategy: StrategyToken,
		Principal: &Principal{
			Kind:               KindUser,
			ID:                 user.ID,
			Email:              user.Email,
			Role:               user.Role,
			Language:           user.Language,
			ActivateToken:      user.ActivateToken,
			ResetPasswordToken: user.ResetPasswordToken,
			Strategy:           StrategyToken,
			Scopes:             scopes,
		},
	}, nil
}

// Ensure BearerVerifier implements Verifier.
var _ Verifier = (*BearerVerifier)(nil)
