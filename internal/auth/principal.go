// ABOUTME: Principal type for tracking resolved identity through request handlers
// ABOUTME: Provides WithPrincipal/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// Kind classifies a resolved principal.
type Kind string

const (
	// KindUser is an authenticated principal backed by a user row.
	KindUser Kind = "user"
	// KindGuest is a session-scoped principal with no backing user row.
	KindGuest Kind = "guest"
	// KindAnonymous is a request that presented no resolvable credential but
	// was admitted anyway (optional-auth routes).
	KindAnonymous Kind = "anonymous"
)

// Principal is the identity attached to a request after authentication.
// It is reconstructed per request and never persisted.
//
// Guest and anonymous principals carry only zero values for user attributes,
// so every probe degrades to an inert default instead of failing.
type Principal struct {
	Kind     Kind
	ID       int64 // 0 for guest/anonymous
	Email    string
	Role     string
	Language string

	// Artifacts carried from the user row for downstream flows.
	ActivateToken      *string
	ResetPasswordToken *string

	// Strategy is the name of the strategy that authenticated this
	// principal ("Session" or "Token"), empty for anonymous.
	Strategy string

	// SessionID is set when the principal was resolved from a session.
	SessionID string
	// SessionData carries the session's key-value data (guest sessions
	// keep their state here).
	SessionData map[string]string

	// Scopes restrict token-authenticated principals. Session-authenticated
	// principals carry the catch-all scope.
	Scopes []string

	// OTPRequired is set when the user has at least one active second-factor
	// enrollment; OTPVerified when a provider confirmed a code for this
	// session or request.
	OTPRequired bool
	OTPVerified bool
}

// ScopeAll grants every scope. Session-authenticated users get it implicitly.
const ScopeAll = "*"

// Anonymous returns the inert principal used on optional-auth routes when no
// credential resolves.
func Anonymous() *Principal {
	return &Principal{Kind: KindAnonymous}
}

// Guest builds a guest principal from a userless session.
func Guest(sessionID string, data map[string]string) *Principal {
	if data == nil {
		data = map[string]string{}
	}
	return &Principal{
		Kind:        KindGuest,
		Strategy:    StrategySession,
		SessionID:   sessionID,
		SessionData: data,
	}
}

// IsAuthenticated reports whether the principal is backed by a user row.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.Kind == KindUser
}

// IsGuest reports whether the principal is a guest session.
func (p *Principal) IsGuest() bool {
	return p != nil && p.Kind == KindGuest
}

// UserID returns the backing user id. ok is false for guests and anonymous
// principals, which have no numeric id.
func (p *Principal) UserID() (int64, bool) {
	if !p.IsAuthenticated() {
		return 0, false
	}
	return p.ID, true
}

// IsAdmin reports whether the principal is an authenticated admin.
// Guests and anonymous principals are never admins.
func (p *Principal) IsAdmin() bool {
	return p.IsAuthenticated() && p.Role == "admin"
}

// HasScope reports whether the principal's credential grants the scope.
// The catch-all scope grants everything. Guests hold no scopes.
func (p *Principal) HasScope(scope string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// HasCapability is the explicit capability probe used at call sites instead
// of attribute-probing. Unknown capability names return false, and guests
// and anonymous principals answer false for everything.
func (p *Principal) HasCapability(name string) bool {
	if !p.IsAuthenticated() {
		return false
	}
	switch name {
	case "admin":
		return p.Role == "admin"
	case "editor":
		return p.Role == "admin" || p.Role == "editor"
	case "otp":
		return p.OTPVerified
	default:
		return false
	}
}

// principalKey is the key type for storing a Principal in context.Context.
type principalKey struct{}

// WithPrincipal returns a new context with the Principal attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the Principal from the context, returning nil if not present.
func FromContext(ctx context.Context) *Principal {
	val := ctx.Value(principalKey{})
	if val == nil {
		return nil
	}
	p, ok := val.(*Principal)
	if !ok {
		return nil
	}
	return p
}

// MustFromContext retrieves the Principal from the context, panicking if not present.
func MustFromContext(ctx context.Context) *Principal {
	p := FromContext(ctx)
	if p == nil {
		panic("auth: Principal not found in context")
	}
	return p
}
