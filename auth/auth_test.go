package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	m := NewManager(time.Hour, "/login")

	session, err := m.Issue("ada", []string{RoleAdmin})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	got, ok := m.Validate(session.Token)
	require.True(t, ok)
	require.Equal(t, "ada", got.Principal.Name)
	require.True(t, got.Principal.HasRole(RoleAdmin))
	require.False(t, got.Principal.HasRole("auditor"))

	_, ok = m.Validate("unknown")
	require.False(t, ok)
}

func TestExpiredSessionRejected(t *testing.T) {
	m := NewManager(time.Hour, "/login")
	session, err := m.Issue("ada", []string{RoleAdmin})
	require.NoError(t, err)

	session.ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, ok := m.Validate(session.Token)
	require.False(t, ok)

	// An expired token is purged, so a later lookup misses entirely.
	_, ok = m.Validate(session.Token)
	require.False(t, ok)
}

func TestRevoke(t *testing.T) {
	m := NewManager(time.Hour, "/login")
	session, err := m.Issue("ada", nil)
	require.NoError(t, err)

	m.Revoke(session.Token)
	_, ok := m.Validate(session.Token)
	require.False(t, ok)
}

func TestPrincipalFromRequest(t *testing.T) {
	m := NewManager(time.Hour, "/login")
	session, err := m.Issue("ada", []string{RoleAdmin})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/admin/", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	principal, ok := m.Principal(r)
	require.True(t, ok)
	require.Equal(t, "ada", principal.Name)

	r = httptest.NewRequest(http.MethodGet, "/admin/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: session.Token})
	principal, ok = m.Principal(r)
	require.True(t, ok)
	require.Equal(t, "ada", principal.Name)

	r = httptest.NewRequest(http.MethodGet, "/admin/", nil)
	_, ok = m.Principal(r)
	require.False(t, ok)
}

func TestLoginURL(t *testing.T) {
	m := NewManager(time.Hour, "/login")
	require.Equal(t, "/login", m.LoginURL(""))
	require.Equal(t, "/login?next=%2Fadmin%2Fpost%2Flist%2F", m.LoginURL("/admin/post/list/"))
}
