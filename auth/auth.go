// Package auth provides the authentication collaborator consumed by the
// admin controller: a principal with roles resolved from the request, and an
// in-memory session manager that issues, validates and revokes tokens.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// RoleAdmin is the role every admin action requires.
const RoleAdmin = "admin"

// SessionCookie names the cookie the manager reads tokens from.
const SessionCookie = "admin.session"

// Principal is the authenticated actor making a request.
type Principal struct {
	Name  string
	Roles []string
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session represents an issued login token.
type Session struct {
	Token     string
	Principal Principal
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager tracks active sessions in-memory.
type Manager struct {
	mu        sync.RWMutex
	ttl       time.Duration
	loginPath string
	entries   map[string]*Session
}

// NewManager constructs a session manager with the provided TTL and the
// path unauthenticated browsers are redirected to.
func NewManager(ttl time.Duration, loginPath string) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	return &Manager{ttl: ttl, loginPath: loginPath, entries: make(map[string]*Session)}
}

// Issue creates a new session for a named principal with the given roles.
func (m *Manager) Issue(name string, roles []string) (*Session, error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	session := &Session{
		Token:     token,
		Principal: Principal{Name: name, Roles: append([]string(nil), roles...)},
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[token] = session
	return session, nil
}

// Validate looks up a token and returns the session if still valid.
func (m *Manager) Validate(token string) (*Session, bool) {
	m.mu.RLock()
	session, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(session.ExpiresAt) {
		m.Revoke(token)
		return nil, false
	}
	return session, true
}

// Revoke removes a token from the manager.
func (m *Manager) Revoke(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
}

// Principal resolves the requesting principal from a bearer token or the
// session cookie.
func (m *Manager) Principal(r *http.Request) (*Principal, bool) {
	token := r.Header.Get("Authorization")
	if token != "" {
		token = strings.TrimPrefix(token, "Bearer ")
	} else {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie == nil {
			return nil, false
		}
		token = cookie.Value
	}
	session, ok := m.Validate(token)
	if !ok {
		return nil, false
	}
	principal := session.Principal
	return &principal, true
}

// LoginURL builds the login redirect target carrying the originally
// requested URL.
func (m *Manager) LoginURL(dest string) string {
	if dest == "" {
		return m.loginPath
	}
	return m.loginPath + "?next=" + url.QueryEscape(dest)
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
