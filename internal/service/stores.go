package service

import (
	"context"
	"time"

	"campusportal/internal/models"
)

type AdminStore interface {
	FindByEmail(ctx context.Context, email string) (models.Admin, error)
	UpdatePassword(ctx context.Context, id int64, hash []byte) error
}

type ClerkStore interface {
	FindByEmail(ctx context.Context, email string) (models.Clerk, error)
	GetByID(ctx context.Context, id int64) (models.Clerk, error)
	UpdatePassword(ctx context.Context, id int64, hash []byte) error
}

type StudentStore interface {
	FindByRollNo(ctx context.Context, rollNo string) (models.Student, error)
	UpdatePassword(ctx context.Context, id int64, hash []byte) error
	UpdateAvatar(ctx context.Context, rollNo string, avatarURL string) error
}

type ResetStore interface {
	Create(ctx context.Context, token models.ResetToken, deliver func(context.Context) error) error
	Inspect(ctx context.Context, digest string, now time.Time) (models.ResetToken, error)
	ResetPassword(ctx context.Context, digest string, hash []byte, now time.Time) (models.ResetToken, error)
}

type OTPStore interface {
	Upsert(ctx context.Context, otp models.EmailOTP) error
	ConsumeEmailChange(ctx context.Context, rollNo string, digest string, now time.Time) (string, error)
}

// Limiter admits at most one action per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type noLimit struct{}

func (noLimit) Allow(context.Context, string) (bool, error) { return true, nil }
