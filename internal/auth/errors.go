// ABOUTME: Error taxonomy for the auth core
// ABOUTME: Unauthorized failures carry the attempted strategy names for the challenge header

package auth

import (
	"errors"
	"strings"
)

// Auth errors
var (
	// ErrAdminRequired is returned by the error-raising admin guard.
	ErrAdminRequired = errors.New("admin role required")

	// ErrScopeRequired is returned when a token's scopes don't cover an operation.
	ErrScopeRequired = errors.New("insufficient token scope")
)

// failure reasons recorded on invalid verification results. They are logged
// but never surfaced to clients: a tombstoned account and an unknown
// credential must be externally indistinguishable.
const (
	reasonCredentialNotFound = "credential not found"
	reasonAccountTombstoned  = "account tombstoned"
)

// UnauthorizedError is the aggregate failure emitted when every attempted
// strategy failed to authenticate a request. Strategies holds the attempted
// strategy names in attempt order.
type UnauthorizedError struct {
	Strategies []string
}

// Error implements the error interface.
func (e *UnauthorizedError) Error() string {
	return "unauthorized: no valid credentials (" + e.Challenge() + ")"
}

// Challenge returns the WWW-Authenticate challenge value: the attempted
// strategy names joined by ", " in attempt order.
func (e *UnauthorizedError) Challenge() string {
	return strings.Join(e.Strategies, ", ")
}

// IsUnauthorized reports whether err is an expected authentication failure
// (as opposed to an infrastructure error that should become a server error).
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}
