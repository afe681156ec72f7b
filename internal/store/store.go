// ABOUTME: Store interface and data types for drawbridge persistence
// ABOUTME: Defines User, Session, AccessToken structs and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when trying to create a user with an email
// that is already registered
var ErrDuplicateEmail = errors.New("email already registered")

// DeletedUserEmail is the sentinel stored in place of the email address when
// an account is tombstoned. Sessions and tokens referencing such a user must
// not authenticate.
const DeletedUserEmail = "DELETED"

// Role constants for user roles
const (
	RoleAdmin   = "admin"
	RoleEditor  = "editor"
	RolePending = "pending"
)

// User represents a registered account
type User struct {
	ID                 int64
	Email              string
	PwdHash            string
	Role               string // "admin", "editor", "pending"
	Language           string
	ActivateToken      *string
	ResetPasswordToken *string
	CreatedAt          time.Time
}

// Deleted reports whether the account has been tombstoned.
func (u *User) Deleted() bool {
	return u.Email == DeletedUserEmail
}

// Session represents a browser session. UserID is nil for guest sessions
// that have no backing user row.
type Session struct {
	ID             string
	UserID         *int64
	Persistent     bool
	Data           map[string]string
	LastActionTime time.Time
	CreatedAt      time.Time
}

// AccessToken represents a long-lived API token tied to a user.
// The token value is the secret; Scopes restrict what it may do.
type AccessToken struct {
	ID         int64
	Token      string
	UserID     int64
	Comment    string
	Scopes     []string
	LastUsedAt time.Time
	CreatedAt  time.Time
}

// SessionStore defines session persistence operations.
// Lookups return ErrNotFound rather than erroring on absence.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	// TouchSession refreshes last_action_time to the current time.
	TouchSession(ctx context.Context, id string) error
	UpdateSessionData(ctx context.Context, id string, data map[string]string) error
	DeleteSession(ctx context.Context, id string) error
}

// TokenStore defines access token persistence operations.
type TokenStore interface {
	CreateAccessToken(ctx context.Context, token *AccessToken) error
	GetAccessTokenByValue(ctx context.Context, value string) (*AccessToken, error)
	// TouchAccessToken refreshes last_used_at to the current time.
	TouchAccessToken(ctx context.Context, id int64) error
	ListAccessTokens(ctx context.Context, userID int64) ([]*AccessToken, error)
	DeleteAccessToken(ctx context.Context, id, userID int64) error
}

// UserStore defines user persistence operations.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	// TombstoneUser replaces the account's email with the tombstone sentinel
	// and clears the password hash. The row and its foreign keys survive, but
	// the account can no longer authenticate.
	TombstoneUser(ctx context.Context, id int64) error
}

// UserDataStore is generic per-user keyed blob storage. OTP providers store
// their enrollments here under distinct key namespaces.
type UserDataStore interface {
	GetUserData(ctx context.Context, userID int64, key string) (string, error)
	// SetUserData upserts the value in a single atomic write.
	SetUserData(ctx context.Context, userID int64, key, value string) error
	// UnsetUserData removes the key. Removing an absent key is not an error.
	UnsetUserData(ctx context.Context, userID int64, key string) error
}

// Store combines all persistence concerns of the auth core.
type Store interface {
	SessionStore
	TokenStore
	UserStore
	UserDataStore

	// Close releases any resources held by the store
	Close() error
}
