// ABOUTME: Tests for principal classification, capabilities, and context plumbing
// ABOUTME: Guests and anonymous principals must degrade to inert defaults

package auth

import (
	"testing"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

func TestGuestPrincipalInertDefaults(t *testing.T) {
	p := Guest("sess-guest", nil)

	if p.IsAuthenticated() {
		t.Error("guests are not authenticated users")
	}
	if !p.IsGuest() {
		t.Error("IsGuest must hold")
	}
	if _, ok := p.UserID(); ok {
		t.Error("guests have no user id")
	}
	if p.IsAdmin() {
		t.Error("guests are never admins")
	}
	if p.HasScope("chart:read") || p.HasScope(ScopeAll) {
		t.Error("guests hold no scopes")
	}
	for _, cap := range []string{"admin", "editor", "otp", "made-up"} {
		if p.HasCapability(cap) {
			t.Errorf("guest must answer false for capability %q", cap)
		}
	}
	if p.SessionData == nil {
		t.Error("guest session data must never be nil")
	}
	if p.Email != "" || p.Role != "" || p.ID != 0 {
		t.Error("guest user attributes must be zero values")
	}
}

func TestAnonymousPrincipal(t *testing.T) {
	p := Anonymous()
	if p.IsAuthenticated() || p.IsGuest() {
		t.Error("anonymous is neither user nor guest")
	}
	if p.HasCapability("editor") {
		t.Error("anonymous has no capabilities")
	}
}

func TestHasCapability(t *testing.T) {
	tests := []struct {
		role       string
		capability string
		want       bool
	}{
		{store.RoleAdmin, "admin", true},
		{store.RoleAdmin, "editor", true},
		{store.RoleEditor, "admin", false},
		{store.RoleEditor, "editor", true},
		{store.RolePending, "editor", false},
		{store.RoleAdmin, "unknown-capability", false},
	}

	for _, tt := range tests {
		p := &Principal{Kind: KindUser, ID: 1, Role: tt.role}
		if got := p.HasCapability(tt.capability); got != tt.want {
			t.Errorf("role=%s capability=%s: got %v, want %v", tt.role, tt.capability, got, tt.want)
		}
	}
}

func TestHasCapabilityOTP(t *testing.T) {
	p := &Principal{Kind: KindUser, ID: 1, Role: store.RoleEditor, OTPRequired: true}
	if p.HasCapability("otp") {
		t.Error("unverified principal must not have the otp capability")
	}
	p.OTPVerified = true
	if !p.HasCapability("otp") {
		t.Error("verified principal must have the otp capability")
	}
}

func TestHasScope(t *testing.T) {
	scoped := &Principal{Kind: KindUser, ID: 1, Scopes: []string{"chart:read"}}
	if !scoped.HasScope("chart:read") {
		t.Error("granted scope missing")
	}
	if scoped.HasScope("chart:write") {
		t.Error("ungranted scope must fail")
	}

	all := &Principal{Kind: KindUser, ID: 1, Scopes: []string{ScopeAll}}
	if !all.HasScope("anything:whatsoever") {
		t.Error("catch-all scope grants everything")
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := &Principal{Kind: KindUser, ID: 42, Email: "danvers@example.com"}
	ctx := WithPrincipal(t.Context(), p)

	got := FromContext(ctx)
	if got == nil || got.ID != 42 {
		t.Fatalf("principal lost in context round trip: %+v", got)
	}

	if FromContext(t.Context()) != nil {
		t.Error("empty context must yield nil")
	}
}

func TestMustFromContextPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustFromContext must panic without a principal")
		}
	}()
	MustFromContext(t.Context())
}
