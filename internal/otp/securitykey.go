// ABOUTME: Hardware security key provider implemented over WebAuthn
// ABOUTME: Registration and assertion flows using the go-webauthn library

package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

// SecurityKeyProviderID identifies the hardware-key provider.
const SecurityKeyProviderID = "securitykey"

// securityKeyEnrollment is the persisted enrollment blob: the user's
// registered WebAuthn credentials.
type securityKeyEnrollment struct {
	Credentials []webauthn.Credential `json:"credentials"`
}

// securityKeyUser adapts a drawbridge user to the webauthn.User interface.
type securityKeyUser struct {
	user  *store.User
	creds []webauthn.Credential
}

func (u *securityKeyUser) WebAuthnID() []byte {
	return []byte(fmt.Sprintf("user:%d", u.user.ID))
}

func (u *securityKeyUser) WebAuthnName() string {
	return u.user.Email
}

func (u *securityKeyUser) WebAuthnDisplayName() string {
	return u.user.Email
}

func (u *securityKeyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}

// SecurityKeyProvider implements hardware-key verification.
type SecurityKeyProvider struct {
	cfg        config.SecurityKeyConfig
	userData   store.UserDataStore
	users      UserLookup
	webauthn   *webauthn.WebAuthn
	challenges *challengeStore
	logger     *slog.Logger
}

// NewSecurityKeyProvider creates the hardware-key provider. It fails when
// the WebAuthn relying-party configuration is invalid.
func NewSecurityKeyProvider(cfg config.SecurityKeyConfig, userData store.UserDataStore, users UserLookup) (*SecurityKeyProvider, error) {
	displayName := cfg.DisplayName
	if displayName == "" {
		displayName = "Drawbridge"
	}

	w, err := webauthn.New(&webauthn.Config{
		RPDisplayName: displayName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing webauthn: %w", err)
	}

	return &SecurityKeyProvider{
		cfg:        cfg,
		userData:   userData,
		users:      users,
		webauthn:   w,
		challenges: newChallengeStore(),
		logger:     slog.Default().With("component", "otp", "provider", SecurityKeyProviderID),
	}, nil
}

// Close stops the challenge cleanup goroutine.
func (p *SecurityKeyProvider) Close() {
	p.challenges.Close()
}

// ID returns the provider identifier.
func (p *SecurityKeyProvider) ID() string { return SecurityKeyProviderID }

// Enabled reports whether the deployment configured the provider.
func (p *SecurityKeyProvider) Enabled(cfg config.OTPConfig) bool {
	return cfg.SecurityKey.Enabled && cfg.SecurityKey.RPID != ""
}

// EnabledForUser reports whether the user has registered at least one key.
func (p *SecurityKeyProvider) EnabledForUser(ctx context.Context, userID int64) (bool, error) {
	enrollment, err := p.loadEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(enrollment.Credentials) > 0, nil
}

// Data begins a key registration: it returns the credential creation options
// plus a challenge token referencing the pending server-side state. Nothing
// is stored against the user until Enable validates the attestation.
func (p *SecurityKeyProvider) Data(ctx context.Context, userID int64) (*EnrollmentData, error) {
	waUser, err := p.adaptUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	options, session, err := p.webauthn.BeginRegistration(waUser)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}

	token, err := generateChallengeToken()
	if err != nil {
		return nil, err
	}
	p.challenges.Set(token, session, userID)

	challenge, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encoding options: %w", err)
	}

	return &EnrollmentData{
		Challenge:      challenge,
		ChallengeToken: token,
	}, nil
}

// Enable completes a key registration: the request carries the challenge
// token from Data and the authenticator's attestation response. An
// unverifiable attestation fails with ErrInvalidOTP.
func (p *SecurityKeyProvider) Enable(ctx context.Context, userID int64, req EnrollmentRequest) error {
	session, sessionUserID, ok := p.challenges.Get(req.ChallengeToken)
	if !ok || sessionUserID != userID {
		return ErrInvalidOTP
	}
	p.challenges.Delete(req.ChallengeToken)

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Response))
	if err != nil {
		p.logger.Debug("unparseable attestation response", "error", err)
		return ErrInvalidOTP
	}

	waUser, err := p.adaptUser(ctx, userID)
	if err != nil {
		return err
	}

	credential, err := p.webauthn.CreateCredential(waUser, *session, parsed)
	if err != nil {
		p.logger.Debug("attestation verification failed", "error", err)
		return ErrInvalidOTP
	}

	enrollment, err := p.loadEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		enrollment = &securityKeyEnrollment{}
	} else if err != nil {
		return err
	}
	enrollment.Credentials = append(enrollment.Credentials, *credential)

	if err := p.storeEnrollment(ctx, userID, enrollment); err != nil {
		return err
	}

	p.logger.Info("security key registered", "user_id", userID)
	return nil
}

// Disable removes every registered key. Idempotent.
func (p *SecurityKeyProvider) Disable(ctx context.Context, userID int64) error {
	if err := p.userData.UnsetUserData(ctx, userID, userDataKey(SecurityKeyProviderID)); err != nil {
		return fmt.Errorf("removing enrollment: %w", err)
	}
	p.logger.Info("security keys removed", "user_id", userID)
	return nil
}

// BeginVerify starts an assertion flow for an enrolled user, returning the
// credential request options and a challenge token for Verify.
func (p *SecurityKeyProvider) BeginVerify(ctx context.Context, userID int64) (*EnrollmentData, error) {
	waUser, err := p.adaptUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(waUser.creds) == 0 {
		return nil, store.ErrNotFound
	}

	options, session, err := p.webauthn.BeginLogin(waUser)
	if err != nil {
		return nil, fmt.Errorf("beginning assertion: %w", err)
	}

	token, err := generateChallengeToken()
	if err != nil {
		return nil, err
	}
	p.challenges.Set(token, session, userID)

	challenge, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encoding options: %w", err)
	}

	return &EnrollmentData{
		Challenge:      challenge,
		ChallengeToken: token,
	}, nil
}

// securityKeyAssertion is the submitted "code" for this provider: the
// challenge token from BeginVerify plus the authenticator's assertion.
type securityKeyAssertion struct {
	ChallengeToken string          `json:"challengeToken"`
	Response       json.RawMessage `json:"response"`
}

// Verify completes an assertion flow. The code is a JSON blob carrying the
// challenge token and assertion response. Unenrolled users and malformed
// codes answer false, never an error.
func (p *SecurityKeyProvider) Verify(ctx context.Context, userID int64, code string) (bool, error) {
	enrollment, err := p.loadEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(enrollment.Credentials) == 0 {
		return false, nil
	}

	var assertion securityKeyAssertion
	if err := json.Unmarshal([]byte(code), &assertion); err != nil {
		// The code was meant for a different provider.
		return false, nil
	}

	session, sessionUserID, ok := p.challenges.Get(assertion.ChallengeToken)
	if !ok || sessionUserID != userID {
		return false, nil
	}
	p.challenges.Delete(assertion.ChallengeToken)

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(assertion.Response))
	if err != nil {
		p.logger.Debug("unparseable assertion response", "error", err)
		return false, nil
	}

	waUser, err := p.adaptUser(ctx, userID)
	if err != nil {
		return false, err
	}

	credential, err := p.webauthn.ValidateLogin(waUser, *session, parsed)
	if err != nil {
		p.logger.Debug("assertion verification failed", "error", err)
		return false, nil
	}

	// Persist the updated sign count for clone detection.
	for i := range enrollment.Credentials {
		if bytes.Equal(enrollment.Credentials[i].ID, credential.ID) {
			enrollment.Credentials[i].Authenticator.SignCount = credential.Authenticator.SignCount
		}
	}
	if err := p.storeEnrollment(ctx, userID, enrollment); err != nil {
		p.logger.Warn("failed to update sign count", "error", err)
	}

	return true, nil
}

// adaptUser builds the webauthn.User view of a drawbridge user.
func (p *SecurityKeyProvider) adaptUser(ctx context.Context, userID int64) (*securityKeyUser, error) {
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	enrollment, err := p.loadEnrollment(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		enrollment = &securityKeyEnrollment{}
	} else if err != nil {
		return nil, err
	}

	return &securityKeyUser{user: user, creds: enrollment.Credentials}, nil
}

func (p *SecurityKeyProvider) loadEnrollment(ctx context.Context, userID int64) (*securityKeyEnrollment, error) {
	blob, err := p.userData.GetUserData(ctx, userID, userDataKey(SecurityKeyProviderID))
	if err != nil {
		return nil, err
	}

	var enrollment securityKeyEnrollment
	if err := json.Unmarshal([]byte(blob), &enrollment); err != nil {
		return nil, fmt.Errorf("decoding enrollment: %w", err)
	}
	return &enrollment, nil
}

func (p *SecurityKeyProvider) storeEnrollment(ctx context.Context, userID int64, enrollment *securityKeyEnrollment) error {
	blob, err := json.Marshal(enrollment)
	if err != nil {
		return fmt.Errorf("encoding enrollment: %w", err)
	}
	if err := p.userData.SetUserData(ctx, userID, userDataKey(SecurityKeyProviderID), string(blob)); err != nil {
		return fmt.Errorf("storing enrollment: %w", err)
	}
	return nil
}

// Ensure SecurityKeyProvider implements Provider.
var _ Provider = (*SecurityKeyProvider)(nil)
