package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"campusportal/internal/middleware"
	"campusportal/internal/models"
	"campusportal/internal/security"
)

type emailLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type studentLoginRequest struct {
	RollNo   string `json:"rollNo"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type adminResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type clerkResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type studentResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	RollNo        string     `json:"rollNo"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	DateOfBirth   *time.Time `json:"dateOfBirth,omitempty"`
	AvatarURL     *string    `json:"avatarUrl"`
	HasPassword   bool       `json:"hasPassword"`
}

func toAdminResponse(a models.Admin) adminResponse {
	return adminResponse{ID: a.ID, Name: a.Name, Email: a.Email}
}

func toClerkResponse(c models.Clerk) clerkResponse {
	return clerkResponse{ID: c.ID, Name: c.Name, Email: c.Email, Role: string(c.Role)}
}

func toStudentResponse(s models.Student) studentResponse {
	resp := studentResponse{
		ID:            s.ID,
		Name:          s.Name,
		RollNo:        s.RollNo,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
		AvatarURL:     s.AvatarURL,
		HasPassword:   s.HasPassword(),
	}
	if !s.DateOfBirth.IsZero() {
		dob := s.DateOfBirth
		resp.DateOfBirth = &dob
	}
	return resp
}

func (h HandlerSet) establish(c *gin.Context, role models.Role, claims security.SessionClaims) bool {
	if err := h.sessions.Establish(c.Writer, role, claims); err != nil {
		h.respondError(c, err)
		return false
	}
	return true
}

func (h HandlerSet) AdminLogin(c *gin.Context) {
	var req emailLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}

	admin, err := h.auth.LoginAdmin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.establish(c, models.RoleAdmin, security.AdminClaims(admin)) {
		return
	}
	respondOK(c, "Login successful", gin.H{"admin": toAdminResponse(admin)})
}

func (h HandlerSet) ClerkLogin(c *gin.Context) {
	var req emailLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}

	clerk, err := h.auth.LoginClerk(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.establish(c, models.RoleClerk, security.ClerkClaims(clerk)) {
		return
	}
	respondOK(c, "Login successful", gin.H{"clerk": toClerkResponse(clerk)})
}

func (h HandlerSet) StudentLogin(c *gin.Context) {
	var req studentLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Roll number and password are required")
		return
	}

	student, err := h.auth.LoginStudent(c.Request.Context(), req.RollNo, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !h.establish(c, models.RoleStudent, security.StudentClaims(student)) {
		return
	}
	respondOK(c, "Login successful", gin.H{"student": toStudentResponse(student)})
}

func (h HandlerSet) logout(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.sessions.Clear(c.Writer, role)
		respondOK(c, "Logged out successfully", nil)
	}
}

func (h HandlerSet) AdminMe(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		unauthorized(c)
		return
	}
	admin, err := h.auth.Admin(c.Request.Context(), claims.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "admin": toAdminResponse(admin)})
}

func (h HandlerSet) ClerkMe(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		unauthorized(c)
		return
	}
	clerk, err := h.auth.Clerk(c.Request.Context(), claims.ClerkID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clerk": toClerkResponse(clerk)})
}

func (h HandlerSet) StudentMe(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		unauthorized(c)
		return
	}
	student, err := h.auth.Student(c.Request.Context(), claims.RollNo)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "student": toStudentResponse(student)})
}

func (h HandlerSet) ChangePassword(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.Claims(c)
		if !ok {
			unauthorized(c)
			return
		}

		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
			badRequest(c, "Current and new password are required")
			return
		}

		ctx := c.Request.Context()
		var err error
		switch role {
		case models.RoleAdmin:
			err = h.auth.ChangeAdminPassword(ctx, claims.Email, req.CurrentPassword, req.NewPassword)
		case models.RoleClerk:
			err = h.auth.ChangeClerkPassword(ctx, claims.ClerkID, req.CurrentPassword, req.NewPassword)
		case models.RoleStudent:
			err = h.auth.ChangeStudentPassword(ctx, claims.RollNo, req.CurrentPassword, req.NewPassword)
		}
		if err != nil {
			h.respondError(c, err)
			return
		}
		respondOK(c, "Password updated successfully", nil)
	}
}
