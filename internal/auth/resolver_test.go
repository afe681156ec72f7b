// ABOUTME: Tests for the composite resolver chaining session and bearer strategies
// ABOUTME: Includes end-to-end fixtures against the in-memory mock store

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

type fakeOTPRegistry struct {
	enrolled   map[int64]bool
	validCodes map[string]bool
}

func (f *fakeOTPRegistry) EnabledForUser(_ context.Context, userID int64) (bool, error) {
	return f.enrolled[userID], nil
}

func (f *fakeOTPRegistry) Verify(_ context.Context, _ int64, code string) (bool, error) {
	return f.validCodes[code], nil
}

// newTestResolver builds a resolver over a populated mock store:
// user 1 (danvers) with session "Danvers" and token "Agamotto",
// a guest session "sess-guest", and a tombstoned user 2 behind
// "sess-deleted" / "tok-deleted".
func newTestResolver(t *testing.T) (*Resolver, *store.MockStore) {
	t.Helper()
	ms := store.NewMockStore()
	ctx := t.Context()

	danvers := &store.User{Email: "danvers@example.com", Role: store.RoleEditor, Language: "en-US"}
	if err := ms.CreateUser(ctx, danvers); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	deleted := &store.User{Email: store.DeletedUserEmail, Role: store.RoleEditor}
	if err := ms.CreateUser(ctx, deleted); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	for _, s := range []*store.Session{
		{ID: "Danvers", UserID: &danvers.ID, Data: map[string]string{}},
		{ID: "sess-guest", Data: map[string]string{"chart": "draft"}},
		{ID: "sess-deleted", UserID: &deleted.ID, Data: map[string]string{}},
	} {
		if err := ms.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	past := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tok := range []*store.AccessToken{
		{Token: "Agamotto", UserID: danvers.ID, CreatedAt: past, LastUsedAt: past},
		{Token: "tok-deleted", UserID: deleted.ID, CreatedAt: past, LastUsedAt: past},
	} {
		if err := ms.CreateAccessToken(ctx, tok); err != nil {
			t.Fatalf("CreateAccessToken: %v", err)
		}
	}

	r := NewResolver(NewSessionVerifier(ms, ms), NewBearerVerifier(ms, ms), nil, nil)
	return r, ms
}

func TestResolveSessionOnly(t *testing.T) {
	r, _ := newTestResolver(t)

	p, err := r.Resolve(t.Context(), Credentials{SessionID: "Danvers"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ID != 1 || p.Strategy != StrategySession {
		t.Errorf("expected user 1 via session, got id=%d strategy=%s", p.ID, p.Strategy)
	}
}

func TestResolveTokenOnly(t *testing.T) {
	r, _ := newTestResolver(t)

	p, err := r.Resolve(t.Context(), Credentials{Token: "Agamotto"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ID != 1 || p.Strategy != StrategyToken {
		t.Errorf("expected user 1 via token, got id=%d strategy=%s", p.ID, p.Strategy)
	}
}

func TestResolveSessionWinsOverToken(t *testing.T) {
	r, _ := newTestResolver(t)

	p, err := r.Resolve(t.Context(), Credentials{SessionID: "Danvers", Token: "Agamotto"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Strategy != StrategySession {
		t.Errorf("session must win when both credentials are valid, got %s", p.Strategy)
	}
}

func TestResolveGuestSessionWinsOverValidToken(t *testing.T) {
	r, ms := newTestResolver(t)

	p, err := r.Resolve(t.Context(), Credentials{SessionID: "sess-guest", Token: "Agamotto"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.IsGuest() {
		t.Fatalf("a valid guest session outranks a valid bearer token, got kind=%s", p.Kind)
	}

	// The bearer strategy must not have been attempted at all.
	tok, err := ms.GetAccessTokenByValue(t.Context(), "Agamotto")
	if err != nil {
		t.Fatalf("GetAccessTokenByValue: %v", err)
	}
	if !tok.LastUsedAt.Equal(tok.CreatedAt) {
		t.Error("bearer token was touched although the session already authenticated")
	}
}

func TestResolveFallsThroughToToken(t *testing.T) {
	r, _ := newTestResolver(t)

	// Stale session cookie alongside a valid token: the session failure is
	// swallowed and the token authenticates.
	p, err := r.Resolve(t.Context(), Credentials{SessionID: "sess-gone", Token: "Agamotto"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ID != 1 || p.Strategy != StrategyToken {
		t.Errorf("expected token fallback, got id=%d strategy=%s", p.ID, p.Strategy)
	}
}

func TestResolveTombstonedEverywhere(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, creds := range []Credentials{
		{SessionID: "sess-deleted"},
		{Token: "tok-deleted"},
		{SessionID: "sess-deleted", Token: "tok-deleted"},
	} {
		_, err := r.Resolve(t.Context(), creds, "")
		if !IsUnauthorized(err) {
			t.Errorf("tombstoned credentials %+v must be unauthorized, got %v", creds, err)
		}
	}
}

func TestResolveNothingValid(t *testing.T) {
	r, _ := newTestResolver(t)

	for name, creds := range map[string]Credentials{
		"no credentials":  {},
		"unknown session": {SessionID: "Chewie"},
		"unknown token":   {Token: "Strange"},
		"both unknown":    {SessionID: "Chewie", Token: "Strange"},
	} {
		_, err := r.Resolve(t.Context(), creds, "")
		var ue *UnauthorizedError
		if !errors.As(err, &ue) {
			t.Errorf("%s: expected UnauthorizedError, got %v", name, err)
			continue
		}
		if ue.Challenge() != "Session, Token" {
			t.Errorf("%s: challenge must list both strategies in attempt order, got %q", name, ue.Challenge())
		}
	}
}

func TestResolveOTPGating(t *testing.T) {
	ms := store.NewMockStore()
	ctx := t.Context()

	user := &store.User{Email: "strange@example.com", Role: store.RoleEditor}
	if err := ms.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	plain := &store.Session{ID: "sess-plain", UserID: &user.ID, Data: map[string]string{}}
	verified := &store.Session{ID: "sess-verified", UserID: &user.ID, Data: map[string]string{SessionDataOTPVerified: "true"}}
	for _, s := range []*store.Session{plain, verified} {
		if err := ms.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}

	registry := &fakeOTPRegistry{
		enrolled:   map[int64]bool{user.ID: true},
		validCodes: map[string]bool{"123456": true},
	}
	r := NewResolver(NewSessionVerifier(ms, ms), NewBearerVerifier(ms, ms), registry, nil)

	// Enrolled, no proof: flagged but unverified.
	p, err := r.Resolve(ctx, Credentials{SessionID: "sess-plain"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.OTPRequired || p.OTPVerified {
		t.Errorf("expected required+unverified, got required=%v verified=%v", p.OTPRequired, p.OTPVerified)
	}
	if p.HasCapability("otp") {
		t.Error("otp capability must track verification")
	}

	// Session already carries the verified marker.
	p, err = r.Resolve(ctx, Credentials{SessionID: "sess-verified"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.OTPVerified || !p.HasCapability("otp") {
		t.Error("session-recorded verification must carry over")
	}

	// Submitted codes are verified inline.
	p, err = r.Resolve(ctx, Credentials{SessionID: "sess-plain"}, "123456")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !p.OTPVerified {
		t.Error("valid submitted code must verify the principal")
	}

	// A bad code never fails resolution, it only leaves the flag unset.
	p, err = r.Resolve(ctx, Credentials{SessionID: "sess-plain"}, "999999")
	if err != nil {
		t.Fatalf("a bad code must not fail resolution: %v", err)
	}
	if p.OTPVerified {
		t.Error("invalid code must leave the principal unverified")
	}
}

func TestResolveUnenrolledUserSkipsOTP(t *testing.T) {
	ms := store.NewMockStore()
	ctx := t.Context()

	user := &store.User{Email: "danvers@example.com", Role: store.RoleEditor}
	if err := ms.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	s := &store.Session{ID: "s1", UserID: &user.ID, Data: map[string]string{}}
	if err := ms.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	registry := &fakeOTPRegistry{enrolled: map[int64]bool{}}
	r := NewResolver(NewSessionVerifier(ms, ms), NewBearerVerifier(ms, ms), registry, nil)

	p, err := r.Resolve(ctx, Credentials{SessionID: "s1"}, "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.OTPRequired {
		t.Error("unenrolled users are not second-factor flagged")
	}
}
