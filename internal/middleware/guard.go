package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campusportal/internal/metrics"
	"campusportal/internal/models"
	"campusportal/internal/security"
	"campusportal/internal/session"
)

// RouteGuard redirects page requests according to the caller's sessions.
// Paths under any of the skip prefixes are left alone.
func RouteGuard(sessions *session.Manager, m *metrics.Metrics, skip ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range skip {
			if path == prefix || strings.HasPrefix(path, prefix+"/") {
				c.Next()
				return
			}
		}

		target := session.Decide(path, func(role models.Role) *security.SessionClaims {
			claims, err := sessions.Read(c.Request, role)
			if err != nil {
				return nil
			}
			return claims
		})
		if target == "" {
			c.Next()
			return
		}

		m.Redirect(target)
		c.Redirect(http.StatusTemporaryRedirect, target)
		c.Abort()
	}
}
