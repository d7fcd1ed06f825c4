package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
)

// DefaultSessionTTL is how long an issued session stays valid. Not named
// by the source system; chosen as a conservative single-workday window
// since this service has no refresh-token flow.
const DefaultSessionTTL = 24 * time.Hour

const sessionTokenBytes = 32

// Session is the record validated by the auth middleware and exposed to
// handlers as the current user.
type Session struct {
	Token     string
	UserID    string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionStore holds issued bearer tokens in memory, mirroring the
// original implementation's session map keyed by opaque token.
type SessionStore struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionStore builds a SessionStore with the given TTL. A zero ttl
// falls back to DefaultSessionTTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{ttl: ttl, sessions: make(map[string]Session)}
}

// Issue creates and stores a new session for userID/username, returning
// the bearer token to hand back to the client.
func (s *SessionStore) Issue(userID, username string) (Session, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, apperrors.Internal("AUTH_TOKEN_GENERATION_FAILED", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now()
	session := Session{
		Token:     token,
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()
	return session, nil
}

// Validate returns the session for token if it exists and has not
// expired. It does not distinguish "missing" from "expired" to the
// caller, matching the uniform 401 the auth middleware returns.
func (s *SessionStore) Validate(token string) (Session, bool) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if time.Now().After(session.ExpiresAt) {
		s.Revoke(token)
		return Session{}, false
	}
	return session, true
}

// Revoke deletes token, used by logout.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// CleanupExpired removes every expired session and returns how many were
// removed, for the periodic cleanup loop.
func (s *SessionStore) CleanupExpired() int {
	now := time.Now()
	removed := 0

	s.mu.Lock()
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	s.mu.Unlock()
	return removed
}
