// ABOUTME: Second-factor provider contract and shared enrollment types
// ABOUTME: Providers are polymorphic over one interface; enrollments live in user data

package otp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

// ErrInvalidOTP is returned when an enrollment proof or submitted code does
// not validate. It is only reachable from explicit enable/verify calls,
// never from base credential resolution.
var ErrInvalidOTP = errors.New("invalid one-time password")

// ErrUnknownProvider is returned when a request names a provider that is not
// registered or not enabled for the deployment.
var ErrUnknownProvider = errors.New("unknown otp provider")

// UserLookup resolves users for providers that need account attributes
// (e.g. the email shown by an authenticator app).
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// EnrollmentData is provider-specific material shown to the user before
// enabling. It is generated fresh per call and never stored.
type EnrollmentData struct {
	// Secret and URL are set by code-based providers (base32 secret plus
	// otpauth:// URL for QR rendering).
	Secret string `json:"secret,omitempty"`
	URL    string `json:"url,omitempty"`

	// Challenge and ChallengeToken are set by challenge-response providers:
	// Challenge carries the provider's options blob, ChallengeToken
	// references the pending server-side state.
	Challenge      json.RawMessage `json:"challenge,omitempty"`
	ChallengeToken string          `json:"challengeToken,omitempty"`
}

// EnrollmentRequest is the secret-plus-proof payload submitted to enable a
// provider, or the response completing a challenge.
type EnrollmentRequest struct {
	Secret         string          `json:"secret,omitempty"`
	Code           string          `json:"code,omitempty"`
	ChallengeToken string          `json:"challengeToken,omitempty"`
	Response       json.RawMessage `json:"response,omitempty"`
}

// Provider is one pluggable second-factor verification mechanism.
//
// Implementations must treat "user has no enrollment" as an ordinary false
// outcome of Verify, not an error: whether a missing factor blocks the
// request is decided by the caller aggregating across providers.
type Provider interface {
	// ID is the stable provider identifier used in routes and enrollment keys.
	ID() string

	// Enabled reports whether the deployment has this provider configured.
	Enabled(cfg config.OTPConfig) bool

	// EnabledForUser reports whether this user has an active enrollment.
	EnabledForUser(ctx context.Context, userID int64) (bool, error)

	// Verify checks a submitted code against the user's enrollment. It
	// returns false, never an error, when the user has no enrollment.
	Verify(ctx context.Context, userID int64, code string) (bool, error)

	// Enable validates the enrollment payload and persists the enrollment
	// in a single atomic write. Fails with ErrInvalidOTP when the proof
	// does not validate.
	Enable(ctx context.Context, userID int64, req EnrollmentRequest) error

	// Disable removes the enrollment. Disabling an unenrolled user is a no-op.
	Disable(ctx context.Context, userID int64) error

	// Data returns fresh enrollment material to show the user. It has no
	// side effect on storage; the secret only becomes an enrollment when
	// Enable confirms it.
	Data(ctx context.Context, userID int64) (*EnrollmentData, error)
}

// userDataKey returns the enrollment storage key for a provider.
func userDataKey(providerID string) string {
	return "otp." + providerID
}
