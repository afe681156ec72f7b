// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user/session/token persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			pwd_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'pending',
			language TEXT NOT NULL DEFAULT 'en-US',
			activate_token TEXT,
			reset_password_token TEXT,
			created_at TEXT NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != 'DELETED';

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
			persistent INTEGER NOT NULL DEFAULT 0,
			data TEXT NOT NULL DEFAULT '{}',
			last_action_time TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

		CREATE TABLE IF NOT EXISTS access_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token TEXT NOT NULL UNIQUE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			comment TEXT NOT NULL DEFAULT '',
			scopes TEXT NOT NULL DEFAULT '[]',
			last_used_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_access_tokens_user ON access_tokens(user_id);

		CREATE TABLE IF NOT EXISTS user_data (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isConstraintViolation checks if an error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

// nullString converts an empty string to nil for nullable columns
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ptrToString returns the dereferenced string or empty string if nil.
func ptrToString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// parseTime parses an RFC3339 timestamp, logging a warning on failure.
func parseTime(value, field, id string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Warn("failed to parse stored timestamp", "field", field, "id", id, "error", err)
		return time.Time{}
	}
	return parsed
}

// CreateUser inserts a new user row and backfills the generated ID.
// Returns ErrDuplicateEmail if the email is already registered.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.Role == "" {
		user.Role = RolePending
	}
	if user.Language == "" {
		user.Language = "en-US"
	}

	query := `
		INSERT INTO users (email, pwd_hash, role, language, activate_token, reset_password_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		user.Email,
		user.PwdHash,
		user.Role,
		user.Language,
		nullString(ptrToString(user.ActivateToken)),
		nullString(ptrToString(user.ResetPasswordToken)),
		user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting user id: %w", err)
	}
	user.ID = id

	s.logger.Debug("created user", "id", user.ID, "role", user.Role)
	return nil
}

// scanUser scans a user row from the given scanner.
func scanUser(scan func(dest ...any) error) (*User, error) {
	var user User
	var activateToken, resetToken sql.NullString
	var createdAt string

	if err := scan(
		&user.ID,
		&user.Email,
		&user.PwdHash,
		&user.Role,
		&user.Language,
		&activateToken,
		&resetToken,
		&createdAt,
	); err != nil {
		return nil, err
	}

	if activateToken.Valid {
		user.ActivateToken = &activateToken.String
	}
	if resetToken.Valid {
		user.ResetPasswordToken = &resetToken.String
	}
	user.CreatedAt = parseTime(createdAt, "users.created_at", fmt.Sprint(user.ID))
	return &user, nil
}

const userColumns = `id, email, pwd_hash, role, language, activate_token, reset_password_token, created_at`

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address.
// Returns ErrNotFound if no user is registered under the email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

// ListUsers returns all users ordered by id.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// TombstoneUser replaces the email with the tombstone sentinel and clears the
// password hash. Sessions and tokens keep their rows but stop authenticating.
func (s *SQLiteStore) TombstoneUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, pwd_hash = '', activate_token = NULL, reset_password_token = NULL WHERE id = ?`,
		DeletedUserEmail, id,
	)
	if err != nil {
		return fmt.Errorf("tombstoning user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking tombstone result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("tombstoned user", "id", id)
	return nil
}

// CreateSession inserts a new session row.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *Session) error {
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

	data, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("encoding session data: %w", err)
	}

	var userID any
	if session.UserID != nil {
		userID = *session.UserID
	}

	query := `
		INSERT INTO sessions (id, user_id, persistent, data, last_action_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		session.ID,
		userID,
		session.Persistent,
		string(data),
		session.LastActionTime.Format(time.RFC3339),
		session.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	s.logger.Debug("created session", "id", session.ID, "guest", session.UserID == nil)
	return nil
}

// GetSession retrieves a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	query := `
		SELECT id, user_id, persistent, data, last_action_time, created_at
		FROM sessions
		WHERE id = ?
	`

	var session Session
	var userID sql.NullInt64
	var data, lastAction, createdAt string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&userID,
		&session.Persistent,
		&data,
		&lastAction,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if userID.Valid {
		session.UserID = &userID.Int64
	}
	if err := json.Unmarshal([]byte(data), &session.Data); err != nil {
		return nil, fmt.Errorf("decoding session data: %w", err)
	}
	session.LastActionTime = parseTime(lastAction, "sessions.last_action_time", session.ID)
	session.CreatedAt = parseTime(createdAt, "sessions.created_at", session.ID)

	return &session, nil
}

// TouchSession refreshes the session's last_action_time to the current time.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) TouchSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET last_action_time = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSessionData replaces the session's key-value data blob.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) UpdateSessionData(ctx context.Context, id string, data map[string]string) error {
	if data == nil {
		data = map[string]string{}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding session data: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET data = ? WHERE id = ?`,
		string(encoded), id,
	)
	if err != nil {
		return fmt.Errorf("updating session data: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSession removes a session by ID.
// Returns ErrNotFound if the session doesn't exist.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted session", "id", id)
	return nil
}

// CreateAccessToken inserts a new access token row and backfills the generated ID.
func (s *SQLiteStore) CreateAccessToken(ctx context.Context, token *AccessToken) error {
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

	scopes, err := json.Marshal(token.Scopes)
	if err != nil {
		return fmt.Errorf("encoding token scopes: %w", err)
	}

	query := `
		INSERT INTO access_tokens (token, user_id, comment, scopes, last_used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		token.Token,
		token.UserID,
		token.Comment,
		string(scopes),
		token.LastUsedAt.Format(time.RFC3339),
		token.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("token value already exists")
		}
		return fmt.Errorf("inserting access token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting token id: %w", err)
	}
	token.ID = id

	s.logger.Debug("created access token", "id", token.ID, "user_id", token.UserID)
	return nil
}

// scanAccessToken scans an access token row from the given scanner.
func scanAccessToken(scan func(dest ...any) error) (*AccessToken, error) {
	var token AccessToken
	var scopes, lastUsed, createdAt string

	if err := scan(
		&token.ID,
		&token.Token,
		&token.UserID,
		&token.Comment,
		&scopes,
		&lastUsed,
		&createdAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(scopes), &token.Scopes); err != nil {
		return nil, fmt.Errorf("decoding token scopes: %w", err)
	}
	token.LastUsedAt = parseTime(lastUsed, "access_tokens.last_used_at", fmt.Sprint(token.ID))
	token.CreatedAt = parseTime(createdAt, "access_tokens.created_at", fmt.Sprint(token.ID))
	return &token, nil
}

const tokenColumns = `id, token, user_id, comment, scopes, last_used_at, created_at`

// GetAccessTokenByValue retrieves an access token by its secret value.
// Returns ErrNotFound if no token matches.
func (s *SQLiteStore) GetAccessTokenByValue(ctx context.Context, value string) (*AccessToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM access_tokens WHERE token = ?`, value)
	token, err := scanAccessToken(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying access token: %w", err)
	}
	return token, nil
}

// TouchAccessToken refreshes the token's last_used_at to the current time.
// Returns ErrNotFound if the token doesn't exist.
func (s *SQLiteStore) TouchAccessToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE access_tokens SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("touching access token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAccessTokens returns all access tokens belonging to a user,
// newest first.
func (s *SQLiteStore) ListAccessTokens(ctx context.Context, userID int64) ([]*AccessToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM access_tokens WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying access tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []*AccessToken
	for rows.Next() {
		token, err := scanAccessToken(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning access token row: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating access token rows: %w", err)
	}
	return tokens, nil
}

// DeleteAccessToken removes a token by ID, scoped to its owning user so a
// user cannot revoke another user's token.
// Returns ErrNotFound if the token doesn't exist or belongs to someone else.
func (s *SQLiteStore) DeleteAccessToken(ctx context.Context, id, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted access token", "id", id, "user_id", userID)
	return nil
}

// GetUserData retrieves a per-user data blob by key.
// Returns ErrNotFound if the key is not set.
func (s *SQLiteStore) GetUserData(ctx context.Context, userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_data WHERE user_id = ? AND key = ?`,
		userID, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying user data: %w", err)
	}
	return value, nil
}

// SetUserData upserts a per-user data blob in a single atomic write.
func (s *SQLiteStore) SetUserData(ctx context.Context, userID int64, key, value string) error {
	query := `
		INSERT INTO user_data (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, userID, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("setting user data: %w", err)
	}
	return nil
}

// UnsetUserData removes a per-user data blob. Removing an absent key is a no-op.
func (s *SQLiteStore) UnsetUserData(ctx context.Context, userID int64, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_data WHERE user_id = ? AND key = ?`, userID, key)
	if err != nil {
		return fmt.Errorf("unsetting user data: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
