package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"campusportal/internal/models"
	"campusportal/internal/security"
	"campusportal/internal/session"
)

const claimsKey = "session_claims"

// RequireSession admits requests carrying a valid session cookie for role.
// Cookies of other roles are never consulted.
func RequireSession(sessions *session.Manager, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := sessions.Read(c.Request, role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims returns the session claims stored by RequireSession.
func Claims(c *gin.Context) (*security.SessionClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.SessionClaims)
	return claims, ok && claims != nil
}
