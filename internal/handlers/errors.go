package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusportal/internal/middleware"
	"campusportal/internal/service"
)

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, service.ErrValidation),
		errors.Is(kind, service.ErrSecretInvalid),
		errors.Is(kind, service.ErrSecretExpired),
		errors.Is(kind, service.ErrSecretUsed):
		return http.StatusBadRequest
	case errors.Is(kind, service.ErrUnauthenticated),
		errors.Is(kind, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(kind, service.ErrForbidden),
		errors.Is(kind, service.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(kind, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(kind, service.ErrCooldown):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. Only service errors carry a
// message meant for the caller; anything else is logged and reported as a
// generic internal error.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		c.JSON(statusFor(svcErr.Kind), gin.H{"success": false, "error": svcErr.Message})
		return
	}

	h.log.Error().
		Err(err).
		Str("path", c.Request.URL.Path).
		Str("request_id", c.Writer.Header().Get(middleware.RequestIDHeader)).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
}

func respondOK(c *gin.Context, message string, extra gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
