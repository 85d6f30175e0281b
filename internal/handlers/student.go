package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusportal/internal/media/imageinfo"
	"campusportal/internal/middleware"
	"campusportal/internal/service"
)

type sendOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

func (h HandlerSet) SendEmailOTP(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		badRequest(c, "Email is required")
		return
	}

	if err := h.otp.SendEmailOTP(c.Request.Context(), claims.RollNo, req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "OTP sent to your email", nil)
}

func (h HandlerSet) VerifyEmailOTP(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OTP == "" {
		badRequest(c, "OTP is required")
		return
	}

	email, err := h.otp.VerifyEmailOTP(c.Request.Context(), claims.RollNo, req.OTP)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Email verified successfully", gin.H{"email": email})
}

func (h HandlerSet) UploadAvatar(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		unauthorized(c)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxAvatarBytes+1<<20)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, "Avatar must be 2 MB or smaller")
			return
		}
		badRequest(c, "Avatar file is required")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	url, err := h.avatars.Upload(c.Request.Context(), service.AvatarInput{
		RollNo:   claims.RollNo,
		File:     file,
		Size:     header.Size,
		Declared: imageinfo.DeclaredType(header.Header),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, "Avatar updated", gin.H{"avatarUrl": url})
}
