package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"campusportal/internal/models"
	"campusportal/internal/security"
)

const (
	CookieAdminAuth     = "admin_auth"
	CookieClerkAuth     = "clerk_auth"
	CookieStudentAuth   = "student_auth"
	CookieAdminLoggedIn = "admin_logged_in"
	CookieClerkLoggedIn = "clerk_logged_in"
	CookieClerkRole     = "clerk_role"
)

var ErrNoSession = errors.New("no session cookie")

func AuthCookieName(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return CookieAdminAuth
	case models.RoleClerk:
		return CookieClerkAuth
	case models.RoleStudent:
		return CookieStudentAuth
	}
	return ""
}

// companionCookies are readable by client code so pages can branch on login
// state without decoding the token.
func companionCookies(role models.Role) []string {
	switch role {
	case models.RoleAdmin:
		return []string{CookieAdminLoggedIn}
	case models.RoleClerk:
		return []string{CookieClerkLoggedIn, CookieClerkRole}
	}
	return nil
}

// Manager binds session tokens to per-role cookies. A browser holds at most
// one role session: establishing one expires the other two.
type Manager struct {
	tokens *security.TokenService
	ttl    time.Duration
	secure bool
}

func NewManager(tokens *security.TokenService, ttl time.Duration, secure bool) *Manager {
	return &Manager{tokens: tokens, ttl: ttl, secure: secure}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Establish(w http.ResponseWriter, role models.Role, claims security.SessionClaims) error {
	token, err := m.tokens.Issue(role, claims, m.ttl)
	if err != nil {
		return fmt.Errorf("establish %s session: %w", role, err)
	}

	for _, other := range models.Roles {
		if other != role {
			m.Clear(w, other)
		}
	}

	m.set(w, AuthCookieName(role), token, true)
	switch role {
	case models.RoleAdmin:
		m.set(w, CookieAdminLoggedIn, "true", false)
	case models.RoleClerk:
		m.set(w, CookieClerkLoggedIn, "true", false)
		m.set(w, CookieClerkRole, string(claims.ClerkRole()), false)
	}
	return nil
}

func (m *Manager) Clear(w http.ResponseWriter, role models.Role) {
	m.expire(w, AuthCookieName(role), true)
	for _, name := range companionCookies(role) {
		m.expire(w, name, false)
	}
}

// Read verifies the token found under role's own cookie name and nowhere else.
func (m *Manager) Read(r *http.Request, role models.Role) (*security.SessionClaims, error) {
	cookie, err := r.Cookie(AuthCookieName(role))
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return m.tokens.Verify(role, cookie.Value)
}

func (m *Manager) set(w http.ResponseWriter, name, value string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: httpOnly,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) expire(w http.ResponseWriter, name string, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: httpOnly,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
