// ABOUTME: In-memory store for pending WebAuthn challenges with TTL cleanup
// ABOUTME: Keyed by random token; entries expire after five minutes

package otp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// challengeData holds WebAuthn session state for an in-progress
// registration or verification.
type challengeData struct {
	session   *webauthn.SessionData
	userID    int64
	expiresAt time.Time
}

// challengeStore is a simple in-memory store for pending WebAuthn challenges.
// In a multi-instance deployment this should be backed by shared storage.
type challengeStore struct {
	mu         sync.RWMutex
	challenges map[string]*challengeData // keyed by challenge token
	cancel     context.CancelFunc
}

func newChallengeStore() *challengeStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &challengeStore{
		challenges: make(map[string]*challengeData),
		cancel:     cancel,
	}
	// Start cleanup goroutine
	go s.cleanupLoop(ctx)
	return s
}

// Close stops the cleanup goroutine.
func (s *challengeStore) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *challengeStore) Set(token string, session *webauthn.SessionData, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[token] = &challengeData{
		session:   session,
		userID:    userID,
		expiresAt: time.Now().Add(5 * time.Minute),
	}
}

func (s *challengeStore) Get(token string) (*webauthn.SessionData, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.challenges[token]
	if !ok || time.Now().After(data.expiresAt) {
		return nil, 0, false
	}
	return data.session, data.userID, true
}

func (s *challengeStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, token)
}

func (s *challengeStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, v := range s.challenges {
				if now.After(v.expiresAt) {
					delete(s.challenges, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// generateChallengeToken returns a URL-safe random token.
func generateChallengeToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating challenge token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
