package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusportal/internal/config"
	"campusportal/internal/models"
	"campusportal/internal/security"
	"campusportal/internal/service"
	"campusportal/internal/service/servicetest"
	"campusportal/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	resetTokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)
	otpPattern        = regexp.MustCompile(`<strong>(\d{6})</strong>`)
)

type avatarBucket struct {
	keys []string
}

func (b *avatarBucket) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	b.keys = append(b.keys, key)
	return "https://files.portal.test/" + key, nil
}

type testServer struct {
	db     *servicetest.DB
	mailer *servicetest.Mailer
	clock  *servicetest.Clock
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		db:     servicetest.NewDB(),
		mailer: &servicetest.Mailer{},
		clock:  servicetest.NewClock(),
	}
	log := zerolog.Nop()

	tokens := security.NewTokenService("0123456789abcdef0123456789abcdef", s.clock.Now)
	sessions := session.NewManager(tokens, time.Hour, false)

	svc := Services{
		Auth: service.NewAuthService(s.db.Admins(), s.db.Clerks(), s.db.Students(),
			config.SecurityConfig{BcryptCost: 4, StudentDOBFallback: true}, nil, log),
		Recovery: service.NewRecoveryService(s.db.Admins(), s.db.Clerks(), s.db.Resets(), s.mailer,
			service.RecoveryOptions{
				TTL:     10 * time.Minute,
				BaseURL: "https://portal.test",
				Hasher:  servicetest.Hasher,
				Now:     s.clock.Now,
			}, nil, log),
		OTP:     service.NewOTPService(s.db.Students(), s.db.OTPs(), s.mailer, 10*time.Minute, nil, s.clock.Now, nil, log),
		Avatars: service.NewAvatarService(s.db.Students(), &avatarBucket{}, log),
	}

	s.router = gin.New()
	NewHandlerSet(log, "test", sessions, svc).Register(s.router.Group("/api"))
	return s
}

func (s *testServer) api() *apitest.APITest {
	return apitest.New().Handler(s.router)
}

func cookieNamed(res *http.Response, name string) *http.Cookie {
	for _, c := range res.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *testServer) lastMail(t *testing.T, pattern *regexp.Regexp) string {
	t.Helper()
	sent := s.mailer.Messages()
	require.NotEmpty(t, sent)
	m := pattern.FindStringSubmatch(sent[len(sent)-1].HTMLBody)
	require.Len(t, m, 2)
	return m[1]
}

func TestAdminLoginSetsOnlyAdminSession(t *testing.T) {
	s := newTestServer(t)
	s.db.AddAdmin("root@portal.test", "correct-horse")

	result := s.api().Post("/api/admin/login").
		JSON(`{"email":"root@portal.test","password":"correct-horse"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.success", true)).
		Assert(jsonpath.Equal("$.admin.email", "root@portal.test")).
		End()

	res := result.Response
	auth := cookieNamed(res, session.CookieAdminAuth)
	require.NotNil(t, auth)
	assert.NotEmpty(t, auth.Value)
	assert.True(t, auth.HttpOnly)
	assert.Equal(t, 3600, auth.MaxAge)

	flag := cookieNamed(res, session.CookieAdminLoggedIn)
	require.NotNil(t, flag)
	assert.False(t, flag.HttpOnly)

	for _, name := range []string{session.CookieClerkAuth, session.CookieStudentAuth} {
		c := cookieNamed(res, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value, name)
		assert.Negative(t, c.MaxAge, name)
	}

	s.api().Get("/api/admin/me").
		Cookie(session.CookieAdminAuth, auth.Value).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.admin.email", "root@portal.test")).
		End()

	// The admin session does not open the clerk partition.
	s.api().Get("/api/clerk/me").
		Cookie(session.CookieAdminAuth, auth.Value).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.db.AddAdmin("root@portal.test", "correct-horse")

	s.api().Post("/api/admin/login").
		JSON(`{"email":"root@portal.test","password":"wrong"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.success", false)).
		CookieNotPresent(session.CookieAdminAuth).
		End()

	s.api().Post("/api/admin/login").
		JSON(`{"email":"nobody@portal.test","password":"whatever"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	s.api().Post("/api/admin/login").
		JSON(`{"email":""}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	s.api().Post("/api/admin/login").
		Body("not json").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestDeactivatedClerkLogin(t *testing.T) {
	s := newTestServer(t)
	s.db.AddClerk("gone@portal.test", "secret-pass", models.ClerkRoleAdmission, false)

	s.api().Post("/api/clerk/login").
		JSON(`{"email":"gone@portal.test","password":"secret-pass"}`).
		Expect(t).
		Status(http.StatusForbidden).
		Assert(jsonpath.Contains("$.error", "deactivated")).
		CookieNotPresent(session.CookieClerkAuth).
		CookieNotPresent(session.CookieClerkRole).
		End()
}

func TestClerkLoginSetsRoleCookie(t *testing.T) {
	s := newTestServer(t)
	s.db.AddClerk("desk@portal.test", "secret-pass", models.ClerkRoleFaculty, true)

	result := s.api().Post("/api/clerk/login").
		JSON(`{"email":"desk@portal.test","password":"secret-pass"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.clerk.role", "faculty")).
		End()

	role := cookieNamed(result.Response, session.CookieClerkRole)
	require.NotNil(t, role)
	assert.Equal(t, "faculty", role.Value)
	assert.NotNil(t, cookieNamed(result.Response, session.CookieClerkLoggedIn))
}

func TestLogoutClearsCookies(t *testing.T) {
	s := newTestServer(t)

	result := s.api().Post("/api/clerk/logout").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.success", true)).
		End()

	for _, name := range []string{session.CookieClerkAuth, session.CookieClerkLoggedIn, session.CookieClerkRole} {
		c := cookieNamed(result.Response, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}
}

func TestAdminForgotPasswordUnknownEmail(t *testing.T) {
	s := newTestServer(t)

	s.api().Post("/api/admin/forgot-password").
		JSON(`{"email":"ghost@portal.test"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.success", true)).
		Assert(jsonpath.Equal("$.message", service.ResetRequestedMessage)).
		End()

	assert.Zero(t, s.db.ResetCount())
	assert.Empty(t, s.mailer.Messages())
}

func TestClerkForgotPasswordUnknownEmail(t *testing.T) {
	s := newTestServer(t)

	s.api().Post("/api/clerk/forgot-password").
		JSON(`{"email":"ghost@portal.test"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestResetPasswordFlow(t *testing.T) {
	s := newTestServer(t)
	s.db.AddClerk("desk@portal.test", "old-password", models.ClerkRoleScholarship, true)

	s.api().Post("/api/clerk/forgot-password").
		JSON(`{"email":"desk@portal.test"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	token := s.lastMail(t, resetTokenPattern)

	s.api().Get("/api/reset-password/validate").
		Query("token", token).
		Query("type", "clerk").
		Expect(t).
		Status(http.StatusOK).
		End()

	body := fmt.Sprintf(`{"token":%q,"type":"clerk","newPassword":"brand-new-password"}`, token)
	s.api().Post("/api/reset-password").
		JSON(body).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.success", true)).
		End()

	s.api().Post("/api/reset-password").
		JSON(body).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.error", "This reset link has already been used")).
		End()

	s.api().Post("/api/clerk/login").
		JSON(`{"email":"desk@portal.test","password":"brand-new-password"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
}

func TestResetPasswordExpired(t *testing.T) {
	s := newTestServer(t)
	s.db.AddAdmin("root@portal.test", "old-password")

	s.api().Post("/api/admin/forgot-password").
		JSON(`{"email":"root@portal.test"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	token := s.lastMail(t, resetTokenPattern)
	s.clock.Advance(11 * time.Minute)

	s.api().Post("/api/reset-password").
		JSON(fmt.Sprintf(`{"token":%q,"type":"admin","newPassword":"brand-new-password"}`, token)).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Contains("$.error", "expired")).
		End()
	assert.Zero(t, s.db.ResetCount())
}

func TestAdminForgotPasswordMailFailure(t *testing.T) {
	s := newTestServer(t)
	s.db.AddAdmin("root@portal.test", "old-password")
	s.mailer.Err = errors.New("dial tcp 10.0.0.5:587: connection refused")

	for _, email := range []string{"root@portal.test", "ghost@portal.test"} {
		s.api().Post("/api/admin/forgot-password").
			JSON(fmt.Sprintf(`{"email":%q}`, email)).
			Expect(t).
			Status(http.StatusOK).
			Assert(jsonpath.Equal("$.success", true)).
			Assert(jsonpath.Equal("$.message", service.ResetRequestedMessage)).
			End()
	}
	assert.Zero(t, s.db.ResetCount())
}

func TestMailFailureIsGeneric(t *testing.T) {
	s := newTestServer(t)
	s.db.AddClerk("desk@portal.test", "old-password", models.ClerkRoleFaculty, true)
	s.mailer.Err = errors.New("dial tcp 10.0.0.5:587: connection refused")

	s.api().Post("/api/clerk/forgot-password").
		JSON(`{"email":"desk@portal.test"}`).
		Expect(t).
		Status(http.StatusInternalServerError).
		Assert(jsonpath.Equal("$.error", "Internal server error")).
		End()
}

func studentSession(t *testing.T, s *testServer) string {
	t.Helper()
	s.db.AddStudent(models.Student{
		Name:        "Asha",
		RollNo:      "CS-001",
		Email:       "asha@old.test",
		DateOfBirth: time.Date(2003, 7, 14, 0, 0, 0, 0, time.UTC),
	})

	result := s.api().Post("/api/student/login").
		JSON(`{"rollNo":"CS-001","password":"2003-07-14"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.student.rollNo", "CS-001")).
		End()

	c := cookieNamed(result.Response, session.CookieStudentAuth)
	require.NotNil(t, c)
	return c.Value
}

func TestStudentEmailOTP(t *testing.T) {
	s := newTestServer(t)
	token := studentSession(t, s)

	s.api().Post("/api/student/email/otp").
		JSON(`{"email":"asha@new.test"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	s.api().Post("/api/student/email/otp").
		Cookie(session.CookieStudentAuth, token).
		JSON(`{"email":"asha@new.test"}`).
		Expect(t).
		Status(http.StatusOK).
		End()
	code := s.lastMail(t, otpPattern)

	body := fmt.Sprintf(`{"otp":%q}`, code)
	s.api().Post("/api/student/email/verify").
		Cookie(session.CookieStudentAuth, token).
		JSON(body).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.email", "asha@new.test")).
		End()

	s.api().Post("/api/student/email/verify").
		Cookie(session.CookieStudentAuth, token).
		JSON(body).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.error", "Invalid or expired OTP")).
		End()

	s.api().Get("/api/student/me").
		Cookie(session.CookieStudentAuth, token).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.student.email", "asha@new.test")).
		Assert(jsonpath.Equal("$.student.emailVerified", true)).
		End()
}

func TestStudentChangePassword(t *testing.T) {
	s := newTestServer(t)
	token := studentSession(t, s)

	s.api().Post("/api/student/change-password").
		Cookie(session.CookieStudentAuth, token).
		JSON(`{"currentPassword":"2003-07-14","newPassword":"short"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	s.api().Post("/api/student/change-password").
		Cookie(session.CookieStudentAuth, token).
		JSON(`{"currentPassword":"2003-07-14","newPassword":"a-real-password"}`).
		Expect(t).
		Status(http.StatusOK).
		End()

	s.api().Post("/api/student/login").
		JSON(`{"rollNo":"CS-001","password":"2003-07-14"}`).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func multipartAvatar(t *testing.T, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="me.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestStudentAvatarUpload(t *testing.T) {
	s := newTestServer(t)
	token := studentSession(t, s)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 128, 128))))
	body, ct := multipartAvatar(t, "image/png", img.Bytes())
	s.api().Post("/api/student/avatar").
		Cookie(session.CookieStudentAuth, token).
		Header("Content-Type", ct).
		Body(body.String()).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.avatarUrl")).
		End()

	require.NotNil(t, s.db.Student("CS-001").AvatarURL)

	body, ct = multipartAvatar(t, "image/svg+xml", []byte(`<svg onload="alert(1)"/>`))
	s.api().Post("/api/student/avatar").
		Cookie(session.CookieStudentAuth, token).
		Header("Content-Type", ct).
		Body(body.String()).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestHealth(t *testing.T) {
	router := gin.New()
	h := NewHandlerSet(zerolog.Nop(), "test", nil, Services{},
		HealthCheck{Name: "database", Ping: func(context.Context) error { return nil }},
		HealthCheck{Name: "cache", Ping: func(context.Context) error { return errors.New("down") }},
	)
	router.GET("/healthz", h.Health)

	apitest.New().Handler(router).Get("/healthz").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		Assert(jsonpath.Equal("$.checks.database", "ok")).
		Assert(jsonpath.Equal("$.checks.cache", "error")).
		Assert(jsonpath.Equal("$.status", "degraded")).
		End()
}
