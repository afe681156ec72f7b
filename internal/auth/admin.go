// ABOUTME: Authorization helpers consumed by route handlers
// ABOUTME: Role and scope checks with boolean and error-raising guard variants

package auth

// IsAdmin reports whether the principal is an authenticated admin.
// Guests and anonymous principals always fail the check.
func IsAdmin(p *Principal) bool {
	return p.IsAdmin()
}

// RequireAdmin is the guard variant of IsAdmin: it returns ErrAdminRequired
// instead of false, so call sites can use it as a gate rather than a branch.
func RequireAdmin(p *Principal) error {
	if !p.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

// RequireScope returns ErrScopeRequired when the principal's credential does
// not grant the scope. Session-authenticated users carry the catch-all scope
// and pass every check; guests hold no scopes and pass none.
func RequireScope(p *Principal, scope string) error {
	if !p.HasScope(scope) {
		return ErrScopeRequired
	}
	return nil
}
