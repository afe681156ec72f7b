// ABOUTME: Tests for the authenticator-app provider lifecycle
// ABOUTME: Enrollment proof, verification, and idempotent disable

package otp

import (
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/drawbridgehq/drawbridge/internal/config"
	"github.com/drawbridgehq/drawbridge/internal/store"
)

func newTOTPTestProvider(t *testing.T) (*TOTPProvider, *store.MockStore, *store.User) {
	t.Helper()
	ms := store.NewMockStore()
	user := &store.User{Email: "danvers@example.com", Role: store.RoleEditor}
	if err := ms.CreateUser(t.Context(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	p := NewTOTPProvider(config.TOTPConfig{Enabled: true, Issuer: "Drawbridge"}, ms, ms)
	return p, ms, user
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return code
}

func TestTOTPLifecycle(t *testing.T) {
	p, _, user := newTOTPTestProvider(t)
	ctx := t.Context()

	// Not enrolled yet.
	enrolled, err := p.EnabledForUser(ctx, user.ID)
	if err != nil || enrolled {
		t.Fatalf("fresh user must not be enrolled: %v %v", enrolled, err)
	}

	// Fetch enrollment material.
	data, err := p.Data(ctx, user.ID)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if data.Secret == "" || data.URL == "" {
		t.Fatalf("enrollment material incomplete: %+v", data)
	}

	// Enable with a current code.
	if err := p.Enable(ctx, user.ID, EnrollmentRequest{Secret: data.Secret, Code: currentCode(t, data.Secret)}); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	enrolled, err = p.EnabledForUser(ctx, user.ID)
	if err != nil || !enrolled {
		t.Fatalf("user must be enrolled after Enable: %v %v", enrolled, err)
	}

	// Verify accepts a fresh code and rejects garbage.
	ok, err := p.Verify(ctx, user.ID, currentCode(t, data.Secret))
	if err != nil || !ok {
		t.Fatalf("valid code rejected: %v %v", ok, err)
	}
	ok, err = p.Verify(ctx, user.ID, "000000")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("bogus code accepted")
	}

	// Disable removes the enrollment and is idempotent.
	if err := p.Disable(ctx, user.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := p.Disable(ctx, user.ID); err != nil {
		t.Fatalf("second Disable must be a no-op: %v", err)
	}

	enrolled, err = p.EnabledForUser(ctx, user.ID)
	if err != nil || enrolled {
		t.Fatalf("user must not be enrolled after Disable: %v %v", enrolled, err)
	}
}

func TestTOTPEnableRequiresProof(t *testing.T) {
	p, _, user := newTOTPTestProvider(t)
	ctx := t.Context()

	data, err := p.Data(ctx, user.ID)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}

	// Wrong code.
	if err := p.Enable(ctx, user.ID, EnrollmentRequest{Secret: data.Secret, Code: "000000"}); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("expected ErrInvalidOTP, got %v", err)
	}
	// Missing secret.
	if err := p.Enable(ctx, user.ID, EnrollmentRequest{Code: "123456"}); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("expected ErrInvalidOTP, got %v", err)
	}

	// Nothing was stored.
	enrolled, err := p.EnabledForUser(ctx, user.ID)
	if err != nil || enrolled {
		t.Fatalf("failed Enable must store nothing: %v %v", enrolled, err)
	}
}

func TestTOTPVerifyUnenrolled(t *testing.T) {
	p, _, user := newTOTPTestProvider(t)

	ok, err := p.Verify(t.Context(), user.ID, "123456")
	if err != nil {
		t.Fatalf("unenrolled Verify must not error: %v", err)
	}
	if ok {
		t.Error("unenrolled Verify must answer false")
	}
}

func TestTOTPDataFresh(t *testing.T) {
	p, _, user := newTOTPTestProvider(t)
	ctx := t.Context()

	a, err := p.Data(ctx, user.ID)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	b, err := p.Data(ctx, user.ID)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	if a.Secret == b.Secret {
		t.Error("each Data call must generate a fresh secret")
	}
}
