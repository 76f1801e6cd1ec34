package auth

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// SessionClaims claims carried by the platform session token
type SessionClaims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`

	jwt.StandardClaims
}

// TimeRemaining remaining time before the token get expired
func (tk *SessionClaims) TimeRemaining() time.Duration {
	exp := time.Unix(tk.ExpiresAt, 0)
	now := time.Now()

	if exp.Before(now) {
		return 0
	}
	return exp.Sub(now)
}

// ErrEmptyToken no session token is set
var ErrEmptyToken = errors.New("session token is empty")

// Session holds the platform session token on behalf of the host application.
//
// token issuance and refresh stay with the platform, the agent only decodes
// claims to know who it syncs for and when the token runs out
type Session struct {
	mu     sync.RWMutex
	token  string
	claims *SessionClaims
}

// NewSession create a Session from a raw token string
func NewSession(token string) (*Session, error) {
	s := &Session{}
	if err := s.SetToken(token); err != nil {
		return nil, err
	}
	return s, nil
}

// SetToken replace the held token, decoding its claims without verification.
// Signature verification belongs to the platform, the agent never holds the secret
func (s *Session) SetToken(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	claims := new(SessionClaims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = token
	s.claims = claims
	s.mu.Unlock()
	return nil
}

// Token current raw token string
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Claims decoded claims of the current token
func (s *Session) Claims() *SessionClaims {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.claims
}

// Expired report whether the held token has run out
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return true
	}
	return s.claims.TimeRemaining() == 0
}

// Authorize attach the session token to an outgoing platform request
func (s *Session) Authorize(req *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
}
