package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"campusportal/internal/mail"
	"campusportal/internal/metrics"
	"campusportal/internal/models"
	"campusportal/internal/repository"
	"campusportal/internal/security"
)

// ResetRequestedMessage is returned for every admin reset request so the
// response does not reveal whether the email has an account.
const ResetRequestedMessage = "If an account exists for that email, a password reset link has been sent."

var (
	errResetInvalid = newError(ErrSecretInvalid, "Invalid or expired reset link")
	errResetExpired = newError(ErrSecretExpired, "This reset link has expired. Please request a new one.")
	errResetUsed    = newError(ErrSecretUsed, "This reset link has already been used")
	errResetRole    = newError(ErrValidation, "Password reset is available for admin and clerk accounts only")
)

type RecoveryOptions struct {
	TTL     time.Duration
	BaseURL string
	Hasher  security.PasswordHasher
	Limiter Limiter
	Now     func() time.Time
}

type RecoveryService struct {
	admins  AdminStore
	clerks  ClerkStore
	resets  ResetStore
	mailer  mail.Sender
	opts    RecoveryOptions
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewRecoveryService(
	admins AdminStore,
	clerks ClerkStore,
	resets ResetStore,
	mailer mail.Sender,
	opts RecoveryOptions,
	m *metrics.Metrics,
	log zerolog.Logger,
) *RecoveryService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limiter == nil {
		opts.Limiter = noLimit{}
	}
	return &RecoveryService{
		admins:  admins,
		clerks:  clerks,
		resets:  resets,
		mailer:  mailer,
		opts:    opts,
		metrics: m,
		log:     log,
	}
}

// RequestAdminReset never reports whether email belongs to an admin.
func (s *RecoveryService) RequestAdminReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return newError(ErrValidation, "Email is required")
	}
	if err := s.throttle(ctx, models.RoleAdmin, email); err != nil {
		return err
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			s.log.Info().Msg("admin reset requested for unknown email")
			s.metrics.Secret("reset", "unknown_owner")
			return nil
		}
		return err
	}

	// A failure past this point must look the same as an unknown email.
	if err := s.issue(ctx, models.RoleAdmin, admin.ID, admin.Email); err != nil {
		s.log.Error().Err(err).Int64("admin_id", admin.ID).Msg("admin reset not issued")
		s.metrics.Secret("reset", "failed")
	}
	return nil
}

func (s *RecoveryService) RequestClerkReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return newError(ErrValidation, "Email is required")
	}
	if err := s.throttle(ctx, models.RoleClerk, email); err != nil {
		return err
	}

	clerk, err := s.clerks.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrClerkNotFound) {
			return errClerkNotFound
		}
		return err
	}

	return s.issue(ctx, models.RoleClerk, clerk.ID, clerk.Email)
}

func (s *RecoveryService) throttle(ctx context.Context, role models.Role, email string) error {
	ok, err := s.opts.Limiter.Allow(ctx, string(role)+":"+email)
	if err != nil {
		return err
	}
	if !ok {
		return newError(ErrCooldown, "Please wait before requesting another reset link")
	}
	return nil
}

func (s *RecoveryService) issue(ctx context.Context, role models.Role, ownerID int64, email string) error {
	token, digest, err := security.GenerateResetToken()
	if err != nil {
		return err
	}

	now := s.opts.Now().UTC()
	record := models.ResetToken{
		TokenHash: digest,
		UserID:    strconv.FormatInt(ownerID, 10),
		UserType:  role,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	msg := mail.PasswordResetMessage(email, s.resetLink(role, token), s.opts.TTL)
	err = s.resets.Create(ctx, record, func(ctx context.Context) error {
		if err := s.mailer.Send(ctx, msg); err != nil {
			return fmt.Errorf("send reset email: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.metrics.Secret("reset", "issued")
	s.log.Info().Str("user_type", string(role)).Str("user_id", record.UserID).Msg("password reset issued")
	return nil
}

func (s *RecoveryService) resetLink(role models.Role, token string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("type", string(role))
	return strings.TrimSuffix(s.opts.BaseURL, "/") + "/reset-password?" + q.Encode()
}

// ValidateReset checks a reset link without consuming it.
func (s *RecoveryService) ValidateReset(ctx context.Context, role models.Role, token string) error {
	if err := checkResetRole(role); err != nil {
		return err
	}
	if token == "" {
		return errResetInvalid
	}
	record, err := s.resets.Inspect(ctx, security.DigestSecret(token), s.opts.Now().UTC())
	if err != nil {
		return s.mapResetErr(err)
	}
	if record.UserType != role {
		return errResetInvalid
	}
	return nil
}

// ResetPassword consumes token and sets newPassword for its owner.
func (s *RecoveryService) ResetPassword(ctx context.Context, role models.Role, token, newPassword string) error {
	if err := checkResetRole(role); err != nil {
		return err
	}
	if token == "" {
		return errResetInvalid
	}
	if err := validateNewPassword("", newPassword); err != nil {
		return err
	}

	digest := security.DigestSecret(token)
	now := s.opts.Now().UTC()

	// Reject a mismatched type before the token is spent.
	record, err := s.resets.Inspect(ctx, digest, now)
	if err != nil {
		return s.mapResetErr(err)
	}
	if record.UserType != role {
		return errResetInvalid
	}

	hash, err := s.opts.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	record, err = s.resets.ResetPassword(ctx, digest, hash, now)
	if err != nil {
		return s.mapResetErr(err)
	}

	s.metrics.Secret("reset", "consumed")
	s.log.Info().Str("user_type", string(record.UserType)).Str("user_id", record.UserID).Msg("password reset completed")
	return nil
}

func checkResetRole(role models.Role) error {
	if role != models.RoleAdmin && role != models.RoleClerk {
		return errResetRole
	}
	return nil
}

func (s *RecoveryService) mapResetErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrResetTokenNotFound):
		s.metrics.Secret("reset", "invalid")
		return errResetInvalid
	case errors.Is(err, repository.ErrResetTokenExpired):
		s.metrics.Secret("reset", "expired")
		return errResetExpired
	case errors.Is(err, repository.ErrResetTokenUsed):
		s.metrics.Secret("reset", "used")
		return errResetUsed
	case errors.Is(err, repository.ErrAdminNotFound), errors.Is(err, repository.ErrClerkNotFound):
		return errResetInvalid
	}
	return err
}
