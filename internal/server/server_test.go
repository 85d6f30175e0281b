package server

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/require"

	"campusportal/internal/config"
	"campusportal/internal/handlers"
	"campusportal/internal/metrics"
	"campusportal/internal/models"
	"campusportal/internal/security"
	"campusportal/internal/session"
)

func newTestEngine(t *testing.T) (*gin.Engine, *security.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>portal</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := &config.AppConfig{Environment: "test", HTTP: config.HTTPConfig{StaticDir: dir}}
	tokens := security.NewTokenService("0123456789abcdef0123456789abcdef", time.Now)
	sessions := session.NewManager(tokens, time.Hour, false)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := handlers.NewHandlerSet(zerolog.Nop(), cfg.Environment, sessions, handlers.Services{})
	return NewEngine(cfg, zerolog.Nop(), h, sessions, m, reg), tokens
}

func TestEngineServesPagesBehindGuard(t *testing.T) {
	engine, tokens := newTestEngine(t)

	apitest.New().Handler(engine).Get("/").
		Expect(t).
		Status(http.StatusOK).
		Body("<html>portal</html>").
		End()

	apitest.New().Handler(engine).Get("/app.js").
		Expect(t).
		Status(http.StatusOK).
		Body("console.log(1)").
		End()

	apitest.New().Handler(engine).Get("/student/courses").
		Expect(t).
		Status(http.StatusTemporaryRedirect).
		Header("Location", "/").
		End()

	token, err := tokens.Issue(models.RoleStudent, security.StudentClaims(models.Student{ID: 1, RollNo: "CS-001"}), time.Hour)
	require.NoError(t, err)

	apitest.New().Handler(engine).Get("/student/courses").
		Cookie(session.CookieStudentAuth, token).
		Expect(t).
		Status(http.StatusOK).
		Body("<html>portal</html>").
		End()

	apitest.New().Handler(engine).Get("/student").
		Cookie(session.CookieStudentAuth, token).
		Expect(t).
		Status(http.StatusTemporaryRedirect).
		Header("Location", "/student/dashboard").
		End()
}

func TestEngineAPIAndMetrics(t *testing.T) {
	engine, _ := newTestEngine(t)

	apitest.New().Handler(engine).Get("/api/healthz").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "ok")).
		End()

	apitest.New().Handler(engine).Get("/api/nope").
		Expect(t).
		Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.success", false)).
		End()

	apitest.New().Handler(engine).Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		End()
}
