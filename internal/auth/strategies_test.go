// ABOUTME: Tests for the session and bearer verification strategies
// ABOUTME: Uses small in-test fakes to observe touch calls and error paths

package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/drawbridgehq/drawbridge/internal/store"
)

type fakeSessionStore struct {
	sessions map[string]*store.Session
	touched  []string
	getErr   error
	touchErr error
}

func (f *fakeSessionStore) GetSession(_ context.Context, id string) (*store.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessionStore) TouchSession(_ context.Context, id string) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, id)
	return nil
}

type fakeTokenStore struct {
	tokens  map[string]*store.AccessToken
	touched []int64
}

func (f *fakeTokenStore) GetAccessTokenByValue(_ context.Context, value string) (*store.AccessToken, error) {
	t, ok := f.tokens[value]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTokenStore) TouchAccessToken(_ context.Context, id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

type fakeUserStore struct {
	users map[int64]*store.User
}

func (f *fakeUserStore) GetUser(_ context.Context, id int64) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func userID(id int64) *int64 { return &id }

func TestSessionVerifierUserSession(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*store.Session{
		"s1": {ID: "s1", UserID: userID(1), Data: map[string]string{"theme": "dark"}},
	}}
	users := &fakeUserStore{users: map[int64]*store.User{
		1: {ID: 1, Email: "danvers@example.com", Role: store.RoleEditor, Language: "en-US"},
	}}

	v := NewSessionVerifier(sessions, users)
	result, err := v.Verify(t.Context(), "s1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected valid result")
	}

	p := result.Principal
	if p.Kind != KindUser || p.ID != 1 {
		t.Errorf("wrong principal: kind=%s id=%d", p.Kind, p.ID)
	}
	if p.Email != "danvers@example.com" {
		t.Errorf("wrong email: %s", p.Email)
	}
	if p.Strategy != StrategySession || p.SessionID != "s1" {
		t.Errorf("wrong strategy attribution: %s / %s", p.Strategy, p.SessionID)
	}
	if !p.HasScope("anything:at-all") {
		t.Error("session principals should carry the catch-all scope")
	}
	if p.SessionData["theme"] != "dark" {
		t.Error("session data not carried onto the principal")
	}
	if len(sessions.touched) != 1 || sessions.touched[0] != "s1" {
		t.Errorf("session not touched exactly once: %v", sessions.touched)
	}
}

func TestSessionVerifierGuestSession(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*store.Session{
		"g1": {ID: "g1", Data: map[string]string{"chart": "draft-42"}},
	}}

	v := NewSessionVerifier(sessions, &fakeUserStore{})
	result, err := v.Verify(t.Context(), "g1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatal("guest sessions must authenticate")
	}

	p := result.Principal
	if !p.IsGuest() {
		t.Errorf("expected guest principal, got kind=%s", p.Kind)
	}
	if p.SessionData["chart"] != "draft-42" {
		t.Error("guest session data lost")
	}
	if len(sessions.touched) != 1 {
		t.Error("guest session hit must still refresh last_action_time")
	}
}

func TestSessionVerifierUnknownSession(t *testing.T) {
	v := NewSessionVerifier(&fakeSessionStore{sessions: map[string]*store.Session{}}, &fakeUserStore{})
	result, err := v.Verify(t.Context(), "missing")
	if err != nil {
		t.Fatalf("expected invalid result, got error: %v", err)
	}
	if result.Valid {
		t.Fatal("unknown session must not authenticate")
	}
}

func TestSessionVerifierTombstonedUser(t *testing.T) {
	sessions := &fakeSessionStore{sessions: map[string]*store.Session{
		"s1": {ID: "s1", UserID: userID(7)},
	}}
	users := &fakeUserStore{users: map[int64]*store.User{
		7: {ID: 7, Email: store.DeletedUserEmail, Role: store.RoleEditor},
	}}

	v := NewSessionVerifier(sessions, users)
	result, err := v.Verify(t.Context(), "s1")
	if err != nil {
		t.Fatalf("tombstone must be an invalid result, not an error: %v", err)
	}
	if result.Valid {
		t.Fatal("tombstoned user must not authenticate")
	}
	if len(sessions.touched) != 1 {
		t.Error("last_action_time refresh happens on every session hit, even tombstoned")
	}
}

func TestSessionVerifierInfrastructureError(t *testing.T) {
	boom := errors.New("disk on fire")
	v := NewSessionVerifier(&fakeSessionStore{getErr: boom}, &fakeUserStore{})
	_, err := v.Verify(t.Context(), "s1")
	if !errors.Is(err, boom) {
		t.Fatalf("infrastructure errors must propagate, got: %v", err)
	}
}

func TestBearerVerifierValidToken(t *testing.T) {
	tokens := &fakeTokenStore{tokens: map[string]*store.AccessToken{
		"tok-1": {ID: 11, Token: "tok-1", UserID: 1, Scopes: []string{"chart:read"}},
	}}
	users := &fakeUserStore{users: map[int64]*store.User{
		1: {ID: 1, Email: "agamotto@example.com", Role: store.RoleAdmin},
	}}

	v := NewBearerVerifier(tokens, users)
	result, err := v.Verify(t.Context(), "tok-1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid {
		t.Fatal("expected valid result")
	}

	p := result.Principal
	if p.ID != 1 || p.Strategy != StrategyToken {
		t.Errorf("wrong principal: id=%d strategy=%s", p.ID, p.Strategy)
	}
	if p.HasScope("chart:write") {
		t.Error("token scopes must restrict the principal")
	}
	if !p.HasScope("chart:read") {
		t.Error("granted scope missing")
	}
	if len(tokens.touched) != 1 || tokens.touched[0] != 11 {
		t.Errorf("token not touched exactly once: %v", tokens.touched)
	}
}

func TestBearerVerifierUnscopedTokenGetsCatchAll(t *testing.T) {
	tokens := &fakeTokenStore{tokens: map[string]*store.AccessToken{
		"tok-1": {ID: 11, Token: "tok-1", UserID: 1},
	}}
	users := &fakeUserStore{users: map[int64]*store.User{1: {ID: 1, Email: "a@b.com"}}}

	v := NewBearerVerifier(tokens, users)
	result, err := v.Verify(t.Context(), "tok-1")
	if err != nil || !result.Valid {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Principal.HasScope("anything") {
		t.Error("a token without explicit scopes grants everything")
	}
}

func TestBearerVerifierUnknownToken(t *testing.T) {
	v := NewBearerVerifier(&fakeTokenStore{tokens: map[string]*store.AccessToken{}}, &fakeUserStore{})
	result, err := v.Verify(t.Context(), "nope")
	if err != nil {
		t.Fatalf("expected invalid result, got error: %v", err)
	}
	if result.Valid {
		t.Fatal("unknown token must not authenticate")
	}
}

func TestBearerVerifierTombstonedUser(t *testing.T) {
	tokens := &fakeTokenStore{tokens: map[string]*store.AccessToken{
		"tok-1": {ID: 11, Token: "tok-1", UserID: 7},
	}}
	users := &fakeUserStore{users: map[int64]*store.User{
		7: {ID: 7, Email: store.DeletedUserEmail},
	}}

	v := NewBearerVerifier(tokens, users)
	result, err := v.Verify(t.Context(), "tok-1")
	if err != nil {
		t.Fatalf("tombstone must be an invalid result, not an error: %v", err)
	}
	if result.Valid {
		t.Fatal("tombstoned user must not authenticate")
	}
	if len(tokens.touched) != 1 {
		t.Error("last_used_at refresh happens on every token match, even tombstoned")
	}
}
