// ABOUTME: Time-based authenticator code provider (RFC 6238)
// ABOUTME: Secrets are generated per enrollment and stored in user data

package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pquerna/otp/totp"

	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

// TOTPProviderID identifies the authenticator-app provider.
const TOTPProviderID = "totp"

// totpEnrollment is the persisted enrollment blob.
type totpEnrollment struct {
	Secret string `json:"secret"`
}

// TOTPProvider implements authenticator-app codes.
type TOTPProvider struct {
	cfg      config.TOTPConfig
	userData store.UserDataStore
	users    UserLookup
	logger   *slog.Logger
}

// NewTOTPProvider creates the authenticator provider.
func NewTOTPProvider(cfg config.TOTPConfig, userData store.UserDataStore, users UserLookup) *TOTPProvider {
	return &TOTPProvider{
		cfg:      cfg,
		userData: userData,
		users:    users,
		logger:   slog.Default().With("component", "otp", "provider", TOTPProviderID),
	}
}

// ID returns the provider identifier.
func (p *TOTPProvider) ID() string { return TOTPProviderID }

// Enabled reports whether the deployment configured the provider.
func (p *TOTPProvider) Enabled(cfg config.OTPConfig) bool {
	return cfg.TOTP.Enabled && cfg.TOTP.Issuer != ""
}

// EnabledForUser reports whether the user has an active enrollment.
func (p *TOTPProvider) EnabledForUser(ctx context.Context, userID int64) (bool, error) {
	_, err := p.loadEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Verify checks the submitted code against the enrolled secret.
// An unenrolled user gets false, not an error.
func (p *TOTPProvider) Verify(ctx context.Context, userID int64, code string) (bool, error) {
	enrollment, err := p.loadEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return totp.Validate(code, enrollment.Secret), nil
}

// Enable validates the secret+code proof pair and persists the enrollment.
// The code must be a current valid code for the submitted secret, proving
// the user's authenticator actually holds it.
func (p *TOTPProvider) Enable(ctx context.Context, userID int64, req EnrollmentRequest) error {
	if req.Secret == "" || !totp.Validate(req.Code, req.Secret) {
		return ErrInvalidOTP
	}

	blob, err := json.Marshal(totpEnrollment{Secret: req.Secret})
	if err != nil {
		return fmt.Errorf("encoding enrollment: %w", err)
	}

	if err := p.userData.SetUserData(ctx, userID, userDataKey(TOTPProviderID), string(blob)); err != nil {
		return fmt.Errorf("storing enrollment: %w", err)
	}

	p.logger.Info("totp enabled", "user_id", userID)
	return nil
}

// Disable removes the enrollment. Idempotent.
func (p *TOTPProvider) Disable(ctx context.Context, userID int64) error {
	if err := p.userData.UnsetUserData(ctx, userID, userDataKey(TOTPProviderID)); err != nil {
		return fmt.Errorf("removing enrollment: %w", err)
	}
	p.logger.Info("totp disabled", "user_id", userID)
	return nil
}

// Data generates a fresh secret and otpauth:// URL for display. Nothing is
// stored; the secret only becomes an enrollment once Enable confirms it.
func (p *TOTPProvider) Data(ctx context.Context, userID int64) (*EnrollmentData, error) {
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.cfg.Issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generating totp secret: %w", err)
	}

	return &EnrollmentData{
		Secret: key.Secret(),
		URL:    key.URL(),
	}, nil
}

func (p *TOTPProvider) loadEnrollment(ctx context.Context, userID int64) (*totpEnrollment, error) {
	blob, err := p.userData.GetUserData(ctx, userID, userDataKey(TOTPProviderID))
	if err != nil {
		return nil, err
	}

	var enrollment totpEnrollment
	if err := json.Unmarshal([]byte(blob), &enrollment); err != nil {
		return nil, fmt.Errorf("decoding enrollment: %w", err)
	}
	return &enrollment, nil
}

// Ensure TOTPProvider implements Provider.
var _ Provider = (*TOTPProvider)(nil)
