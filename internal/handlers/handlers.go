package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"campusportal/internal/middleware"
	"campusportal/internal/models"
	"campusportal/internal/service"
	"campusportal/internal/session"
)

type Services struct {
	Auth     *service.AuthService
	Recovery *service.RecoveryService
	OTP      *service.OTPService
	Avatars  *service.AvatarService
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	sessions    *session.Manager
	auth        *service.AuthService
	recovery    *service.RecoveryService
	otp         *service.OTPService
	avatars     *service.AvatarService
	checks      []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, environment string, sessions *session.Manager, svc Services, checks ...HealthCheck) HandlerSet {
	return HandlerSet{
		log:         log,
		environment: environment,
		sessions:    sessions,
		auth:        svc.Auth,
		recovery:    svc.Recovery,
		otp:         svc.OTP,
		avatars:     svc.Avatars,
		checks:      checks,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	admin := router.Group("/admin")
	{
		admin.POST("/login", h.AdminLogin)
		admin.POST("/logout", h.logout(models.RoleAdmin))
		admin.POST("/forgot-password", h.AdminForgotPassword)

		authed := admin.Group("", middleware.RequireSession(h.sessions, models.RoleAdmin))
		authed.GET("/me", h.AdminMe)
		authed.POST("/change-password", h.ChangePassword(models.RoleAdmin))
	}

	clerk := router.Group("/clerk")
	{
		clerk.POST("/login", h.ClerkLogin)
		clerk.POST("/logout", h.logout(models.RoleClerk))
		clerk.POST("/forgot-password", h.ClerkForgotPassword)

		authed := clerk.Group("", middleware.RequireSession(h.sessions, models.RoleClerk))
		authed.GET("/me", h.ClerkMe)
		authed.POST("/change-password", h.ChangePassword(models.RoleClerk))
	}

	student := router.Group("/student")
	{
		student.POST("/login", h.StudentLogin)
		student.POST("/logout", h.logout(models.RoleStudent))

		authed := student.Group("", middleware.RequireSession(h.sessions, models.RoleStudent))
		authed.GET("/me", h.StudentMe)
		authed.POST("/change-password", h.ChangePassword(models.RoleStudent))
		authed.POST("/email/otp", h.SendEmailOTP)
		authed.POST("/email/verify", h.VerifyEmailOTP)
		authed.POST("/avatar", h.UploadAvatar)
	}

	router.GET("/reset-password/validate", h.ValidateResetToken)
	router.POST("/reset-password", h.ResetPassword)
}
