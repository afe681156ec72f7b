// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	users       map[int64]*User             // keyed by user ID
	usersEmail  map[string]int64            // keyed by email -> user ID
	sessions    map[string]*Session         // keyed by session ID
	tokens      map[int64]*AccessToken      // keyed by token ID
	tokenIndex  map[string]int64            // keyed by token value -> token ID
	userData    map[int64]map[string]string // keyed by user ID -> key -> value
	nextUserID  int64
	nextTokenID int64
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:       make(map[int64]*User),
		usersEmail:  make(map[string]int64),
		sessions:    make(map[string]*Session),
		tokens:      make(map[int64]*AccessToken),
		tokenIndex:  make(map[string]int64),
		userData:    make(map[int64]map[string]string),
		nextUserID:  1,
		nextTokenID: 1,
	}
}

// CreateUser stores a new user and assigns an ID.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.Email != DeletedUserEmail {
		if _, exists := m.usersEmail[user.Email]; exists {
			return ErrDuplicateEmail
		}
	}

	if user.ID == 0 {
		user.ID = m.nextUserID
		m.nextUserID++
	} else if user.ID >= m.nextUserID {
		m.nextUserID = user.ID + 1
	}
	if user.Role == "" {
		user.Role = RolePending
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	// Make a copy to avoid external modification
	u := *user
	m.users[u.ID] = &u
	m.usersEmail[u.Email] = u.ID
	return nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *u
	return &result, nil
}

// GetUserByEmail retrieves a user by email address.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usersEmail[email]
	if !ok {
		return nil, ErrNotFound
	}

	result := *m.users[id]
	return &result, nil
}

// ListUsers returns all users ordered by id.
func (m *MockStore) ListUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []*User
	for _, u := range m.users {
		result := *u
		users = append(users, &result)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// TombstoneUser replaces the email with the tombstone sentinel.
func (m *MockStore) TombstoneUser(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.usersEmail, u.Email)
	u.Email = DeletedUserEmail
	u.PwdHash = ""
	u.ActivateToken = nil
	u.ResetPasswordToken = nil
	return nil
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.LastActionTime.IsZero() {
		session.LastActionTime = now
	}
	if session.Data == nil {
		session.Data = map[string]string{}
	}

	s := *session
	s.Data = copyData(session.Data)
	m.sessions[s.ID] = &s
	return nil
}

// GetSession retrieves a session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}

	result := *s
	result.Data = copyData(s.Data)
	return &result, nil
}

// TouchSession refreshes the session's last action time.
func (m *MockStore) TouchSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.LastActionTime = time.Now().UTC()
	return nil
}

// UpdateSessionData replaces the session's data blob.
func (m *MockStore) UpdateSessionData(ctx context.Context, id string, data map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Data = copyData(data)
	return nil
}

// DeleteSession removes a session.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// CreateAccessToken stores a new access token and assigns an ID.
func (m *MockStore) CreateAccessToken(ctx context.Context, token *AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	if token.LastUsedAt.IsZero() {
		token.LastUsedAt = now
	}
	if token.Scopes == nil {
		token.Scopes = []string{}
	}
	if token.ID == 0 {
		token.ID = m.nextTokenID
		m.nextTokenID++
	} else if token.ID >= m.nextTokenID {
		m.nextTokenID = token.ID + 1
	}

	t := *token
	m.tokens[t.ID] = &t
	m.tokenIndex[t.Token] = t.ID
	return nil
}

// GetAccessTokenByValue retrieves a token by its secret value.
func (m *MockStore) GetAccessTokenByValue(ctx context.Context, value string) (*AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.tokenIndex[value]
	if !ok {
		return nil, ErrNotFound
	}

	result := *m.tokens[id]
	return &result, nil
}

// TouchAccessToken refreshes the token's last used time.
func (m *MockStore) TouchAccessToken(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok {
		return ErrNotFound
	}
	t.LastUsedAt = time.Now().UTC()
	return nil
}

// ListAccessTokens returns a user's tokens, newest first.
func (m *MockStore) ListAccessTokens(ctx context.Context, userID int64) ([]*AccessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var tokens []*AccessToken
	for _, t := range m.tokens {
		if t.UserID == userID {
			result := *t
			tokens = append(tokens, &result)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].CreatedAt.After(tokens[j].CreatedAt)
	})
	return tokens, nil
}

// DeleteAccessToken removes a token scoped to its owning user.
func (m *MockStore) DeleteAccessToken(ctx context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[id]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(m.tokenIndex, t.Token)
	delete(m.tokens, id)
	return nil
}

// GetUserData retrieves a per-user data blob by key.
func (m *MockStore) GetUserData(ctx context.Context, userID int64, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.userData[userID]
	if !ok {
		return "", ErrNotFound
	}
	value, ok := data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// SetUserData upserts a per-user data blob.
func (m *MockStore) SetUserData(ctx context.Context, userID int64, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.userData[userID]
	if !ok {
		data = make(map[string]string)
		m.userData[userID] = data
	}
	data[key] = value
	return nil
}

// UnsetUserData removes a per-user data blob. No error if absent.
func (m *MockStore) UnsetUserData(ctx context.Context, userID int64, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if data, ok := m.userData[userID]; ok {
		delete(data, key)
	}
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)
