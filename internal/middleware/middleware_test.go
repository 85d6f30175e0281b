package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusportal/internal/metrics"
	"campusportal/internal/models"
	"campusportal/internal/security"
	"campusportal/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestSessions() (*session.Manager, *security.TokenService) {
	tokens := security.NewTokenService(testSecret, time.Now)
	return session.NewManager(tokens, time.Hour, false), tokens
}

func issue(t *testing.T, tokens *security.TokenService, role models.Role, claims security.SessionClaims) string {
	t.Helper()
	token, err := tokens.Issue(role, claims, time.Hour)
	require.NoError(t, err)
	return token
}

func guardedRouter(sessions *session.Manager, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(RouteGuard(sessions, m, "/api"))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "page") }
	r.NoRoute(ok)
	return r
}

func TestRouteGuardRedirects(t *testing.T) {
	sessions, tokens := newTestSessions()
	admin := issue(t, tokens, models.RoleAdmin, security.AdminClaims(models.Admin{Email: "root@portal.test"}))
	scholarship := issue(t, tokens, models.RoleClerk, security.ClerkClaims(models.Clerk{ID: 7, Email: "s@portal.test", Role: models.ClerkRoleScholarship}))
	other := issue(t, tokens, models.RoleClerk, security.ClerkClaims(models.Clerk{ID: 8, Email: "o@portal.test", Role: models.ClerkRoleOther}))
	student := issue(t, tokens, models.RoleStudent, security.StudentClaims(models.Student{ID: 3, RollNo: "CS-001", Name: "Asha"}))

	// Same secret, issued two hours ago: correctly signed but past its TTL.
	earlier := security.NewTokenService(testSecret, func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired := issue(t, earlier, models.RoleAdmin, security.AdminClaims(models.Admin{Email: "root@portal.test"}))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router := guardedRouter(sessions, m)

	tests := []struct {
		name     string
		path     string
		cookie   string
		value    string
		status   int
		location string
	}{
		{"admin page without session", "/admin/x", "", "", http.StatusTemporaryRedirect, "/"},
		{"admin page with session", "/admin/x", session.CookieAdminAuth, admin, http.StatusOK, ""},
		{"admin root", "/admin", session.CookieAdminAuth, admin, http.StatusTemporaryRedirect, "/admin/dashboard"},
		{"admin root trailing slash", "/admin/", session.CookieAdminAuth, admin, http.StatusTemporaryRedirect, "/admin/dashboard"},
		{"admin page with expired session", "/admin/x", session.CookieAdminAuth, expired, http.StatusTemporaryRedirect, "/"},
		{"admin root with expired session", "/admin", session.CookieAdminAuth, expired, http.StatusTemporaryRedirect, "/"},
		{"admin page with garbage", "/admin/x", session.CookieAdminAuth, "garbage", http.StatusTemporaryRedirect, "/"},
		{"admin page with clerk token in admin cookie", "/admin/x", session.CookieAdminAuth, scholarship, http.StatusTemporaryRedirect, "/"},
		{"clerk root scholarship", "/clerk", session.CookieClerkAuth, scholarship, http.StatusTemporaryRedirect, "/clerk/scholarship/dashboard"},
		{"clerk root other desk", "/clerk", session.CookieClerkAuth, other, http.StatusTemporaryRedirect, "/"},
		{"student landing", "/", session.CookieStudentAuth, student, http.StatusTemporaryRedirect, "/student/dashboard"},
		{"landing without session", "/", "", "", http.StatusOK, ""},
		{"public page", "/about", "", "", http.StatusOK, ""},
		{"api is skipped", "/api/admin/me", "", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := apitest.New().Handler(router).Get(tt.path)
			if tt.cookie != "" {
				req = req.Cookie(tt.cookie, tt.value)
			}
			res := req.Expect(t).Status(tt.status)
			if tt.location != "" {
				res = res.Header("Location", tt.location)
			}
			res.End()
		})
	}

	// One series per distinct redirect target.
	count, err := testutil.GatherAndCount(reg, "portal_guard_redirects_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestRequireSession(t *testing.T) {
	sessions, tokens := newTestSessions()
	student := issue(t, tokens, models.RoleStudent, security.StudentClaims(models.Student{ID: 3, RollNo: "CS-001", Name: "Asha"}))

	r := gin.New()
	r.GET("/me", RequireSession(sessions, models.RoleStudent), func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rollNo": claims.RollNo})
	})

	apitest.New().Handler(r).Get("/me").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.success", false)).
		Assert(jsonpath.Equal("$.error", "Unauthorized")).
		End()

	// A student token placed under another role's cookie name is ignored.
	apitest.New().Handler(r).Get("/me").
		Cookie(session.CookieAdminAuth, student).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	apitest.New().Handler(r).Get("/me").
		Cookie(session.CookieStudentAuth, student).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.rollNo", "CS-001")).
		End()
}

func TestRecoveryHidesPanic(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/boom", func(c *gin.Context) { panic("database password is hunter2") })

	apitest.New().Handler(r).Get("/boom").
		Expect(t).
		Status(http.StatusInternalServerError).
		Assert(jsonpath.Equal("$.error", "Internal server error")).
		End()
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://portal.test"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	apitest.New().Handler(r).Get("/x").
		Header("Origin", "https://portal.test").
		Expect(t).
		Status(http.StatusOK).
		Header("Access-Control-Allow-Origin", "https://portal.test").
		Header("Access-Control-Allow-Credentials", "true").
		End()

	apitest.New().Handler(r).Get("/x").
		Header("Origin", "https://evil.test").
		Expect(t).
		Status(http.StatusOK).
		HeaderNotPresent("Access-Control-Allow-Origin").
		End()

	apitest.New().Handler(r).Method(http.MethodOptions).URL("/x").
		Header("Origin", "https://portal.test").
		Expect(t).
		Status(http.StatusNoContent).
		End()
}
