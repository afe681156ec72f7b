// ABOUTME: Tests for the authorization guard helpers
// ABOUTME: Role and scope gates in both boolean and error-raising forms

package auth

import (
	"errors"
	"testing"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

func TestRequireAdmin(t *testing.T) {
	admin := &Principal{Kind: KindUser, ID: 1, Role: store.RoleAdmin}
	editor := &Principal{Kind: KindUser, ID: 2, Role: store.RoleEditor}
	guest := Guest("g1", nil)

	if err := RequireAdmin(admin); err != nil {
		t.Errorf("admin rejected: %v", err)
	}
	if err := RequireAdmin(editor); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("editor: expected ErrAdminRequired, got %v", err)
	}
	if err := RequireAdmin(guest); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("guest: expected ErrAdminRequired, got %v", err)
	}

	if !IsAdmin(admin) || IsAdmin(editor) || IsAdmin(guest) {
		t.Error("IsAdmin must agree with RequireAdmin")
	}
}

func TestRequireScope(t *testing.T) {
	session := &Principal{Kind: KindUser, ID: 1, Scopes: []string{ScopeAll}}
	scoped := &Principal{Kind: KindUser, ID: 1, Scopes: []string{"auth:read"}}
	guest := Guest("g1", nil)

	if err := RequireScope(session, "chart:write"); err != nil {
		t.Errorf("catch-all scope rejected: %v", err)
	}
	if err := RequireScope(scoped, "auth:read"); err != nil {
		t.Errorf("granted scope rejected: %v", err)
	}
	if err := RequireScope(scoped, "auth:write"); !errors.Is(err, ErrScopeRequired) {
		t.Errorf("expected ErrScopeRequired, got %v", err)
	}
	if err := RequireScope(guest, "auth:read"); !errors.Is(err, ErrScopeRequired) {
		t.Errorf("guest: expected ErrScopeRequired, got %v", err)
	}
}
