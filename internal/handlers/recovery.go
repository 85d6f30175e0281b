package handlers

import (
	"github.com/gin-gonic/gin"

	"campusportal/internal/models"
	"campusportal/internal/service"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	Type        string `json:"type"`
	NewPassword string `json:"newPassword"`
}

func (h HandlerSet) AdminForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		badRequest(c, "Email is required")
		return
	}

	if err := h.recovery.RequestAdminReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, service.ResetRequestedMessage, nil)
}

func (h HandlerSet) ClerkForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		badRequest(c, "Email is required")
		return
	}

	if err := h.recovery.RequestClerkReset(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Password reset link sent to your email", nil)
}

func (h HandlerSet) ValidateResetToken(c *gin.Context) {
	token := c.Query("token")
	role := models.Role(c.Query("type"))
	if token == "" || role == "" {
		badRequest(c, "Token and type are required")
		return
	}

	if err := h.recovery.ValidateReset(c.Request.Context(), role, token); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Token is valid", gin.H{"type": role})
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" || req.Type == "" || req.NewPassword == "" {
		badRequest(c, "Token, type and new password are required")
		return
	}

	if err := h.recovery.ResetPassword(c.Request.Context(), models.Role(req.Type), req.Token, req.NewPassword); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Password has been reset successfully", nil)
}
