// ABOUTME: Strategy verifier contract and verification result type
// ABOUTME: Expected auth failures are structured results, never errors

package auth

import (
	"context"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

// SessionStore is the narrow store surface the session verifier needs.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*store.Session, error)
	TouchSession(ctx context.Context, id string) error
}

// TokenStore is the narrow store surface the bearer verifier needs.
type TokenStore interface {
	GetAccessTokenByValue(ctx context.Context, value string) (*store.AccessToken, error)
	TouchAccessToken(ctx context.Context, id int64) error
}

// UserStore resolves user references held by sessions and tokens.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// Result is the outcome of one strategy's verification attempt.
//
// Expected failures (credential not in store, account tombstoned) come back
// as Valid=false with the reason recorded for logging; the error return of a
// verifier is reserved for infrastructure failures such as an unreachable
// store.
type Result struct {
	Valid     bool
	Strategy  string
	Principal *Principal

	// reason records why verification failed. Logged, never surfaced: the
	// external shape of all expected failures is identical.
	reason string
}

// invalid builds a failed result for the given strategy.
func invalid(strategy, reason string) *Result {
	return &Result{Strategy: strategy, reason: reason}
}

// Verifier turns one raw credential into a verification outcome.
type Verifier interface {
	// Name returns the strategy name used in challenge headers.
	Name() string
	// Verify checks the raw credential. An error is returned only for
	// infrastructure failures; "not authenticated" is a !Valid result.
	Verify(ctx context.Context, credential string) (*Result, error)
}
