package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sessions holds in-memory bearer tokens issued on login. Tokens expire
// after the configured TTL and all of them die with the process, which is
// fine for a single-user local tool.
type Sessions struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]time.Time
	now    func() time.Time
}

// NewSessions creates a session set with the given token lifetime.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:    ttl,
		tokens: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Issue mints a fresh session token.
func (s *Sessions) Issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.tokens[token] = s.now().Add(s.ttl)
	return token
}

// Valid reports whether token is a live session, dropping it if expired.
func (s *Sessions) Valid(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.tokens[token]
	if !ok {
		return false
	}
	if s.now().After(deadline) {
		delete(s.tokens, token)
		return false
	}
	return true
}

// Revoke drops a session token (logout).
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}
