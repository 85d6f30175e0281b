package models

import "time"

// ResetToken is a password-reset secret. Only the digest is stored.
type ResetToken struct {
	ID        int64
	TokenHash string
	UserID    string
	UserType  Role
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

func (t ResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t ResetToken) Used() bool {
	return t.UsedAt != nil
}

// MaxOTPAttempts is how many wrong codes an email OTP survives.
const MaxOTPAttempts = 5

// EmailOTP is a pending email change for a student, confirmed by a numeric code.
type EmailOTP struct {
	RollNo    string
	CodeHash  string
	NewEmail  string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (o EmailOTP) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}
