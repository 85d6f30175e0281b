package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"campusportal/internal/mail"
	"campusportal/internal/metrics"
	"campusportal/internal/models"
	"campusportal/internal/repository"
	"campusportal/internal/security"
)

var (
	errOTPInvalid       = newError(ErrSecretInvalid, "Invalid or expired OTP")
	errOTPExpired       = newError(ErrSecretExpired, "OTP has expired. Please request a new one.")
	errOTPLocked        = newError(ErrSecretInvalid, "Too many incorrect attempts. Please request a new OTP.")
	errEmailTaken       = newError(ErrConflict, "Email is already in use")
	errEmailUnchanged   = newError(ErrValidation, "Email is already verified")
	errOTPMissingFields = newError(ErrValidation, "Email is required")
)

type OTPService struct {
	students StudentStore
	otps     OTPStore
	mailer   mail.Sender
	ttl      time.Duration
	limiter  Limiter
	now      func() time.Time
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

func NewOTPService(
	students StudentStore,
	otps OTPStore,
	mailer mail.Sender,
	ttl time.Duration,
	limiter Limiter,
	now func() time.Time,
	m *metrics.Metrics,
	log zerolog.Logger,
) *OTPService {
	if now == nil {
		now = time.Now
	}
	if limiter == nil {
		limiter = noLimit{}
	}
	return &OTPService{
		students: students,
		otps:     otps,
		mailer:   mailer,
		ttl:      ttl,
		limiter:  limiter,
		now:      now,
		metrics:  m,
		log:      log,
	}
}

// SendEmailOTP starts an email change for the student. Sending again
// replaces the previous code.
func (s *OTPService) SendEmailOTP(ctx context.Context, rollNo, newEmail string) error {
	newEmail = normalizeEmail(newEmail)
	if newEmail == "" {
		return errOTPMissingFields
	}

	student, err := s.students.FindByRollNo(ctx, rollNo)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			return errStudentNotFound
		}
		return err
	}
	if student.EmailVerified && strings.EqualFold(student.Email, newEmail) {
		return errEmailUnchanged
	}

	ok, err := s.limiter.Allow(ctx, "otp:"+rollNo)
	if err != nil {
		return err
	}
	if !ok {
		return errCooldown
	}

	code, err := security.GenerateOTP()
	if err != nil {
		return err
	}

	now := s.now().UTC()
	otp := models.EmailOTP{
		RollNo:    rollNo,
		CodeHash:  security.DigestSecret(code),
		NewEmail:  newEmail,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.otps.Upsert(ctx, otp); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}

	if err := s.mailer.Send(ctx, mail.EmailOTPMessage(newEmail, code, s.ttl)); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}

	s.metrics.Secret("otp", "issued")
	return nil
}

// VerifyEmailOTP applies the pending email change if code matches. The OTP is
// spent by the first verification that finds it, whatever the outcome, and by
// too many wrong codes.
func (s *OTPService) VerifyEmailOTP(ctx context.Context, rollNo, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errOTPInvalid
	}

	email, err := s.otps.ConsumeEmailChange(ctx, rollNo, security.DigestSecret(code), s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOTPNotFound):
			s.metrics.Secret("otp", "invalid")
			return "", errOTPInvalid
		case errors.Is(err, repository.ErrOTPExpired):
			s.metrics.Secret("otp", "expired")
			return "", errOTPExpired
		case errors.Is(err, repository.ErrOTPLocked):
			s.metrics.Secret("otp", "locked")
			s.log.Warn().Str("roll_no", rollNo).Msg("email otp dropped after repeated wrong codes")
			return "", errOTPLocked
		case errors.Is(err, repository.ErrDuplicate):
			return "", errEmailTaken
		case errors.Is(err, repository.ErrStudentNotFound):
			return "", errStudentNotFound
		}
		return "", err
	}

	s.metrics.Secret("otp", "consumed")
	s.log.Info().Str("roll_no", rollNo).Msg("student email verified")
	return email, nil
}
