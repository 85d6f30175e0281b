package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"campusportal/internal/config"
	"campusportal/internal/metrics"
	"campusportal/internal/models"
	"campusportal/internal/repository"
	"campusportal/internal/security"
)

const dobLayout = "2006-01-02"

var (
	errAdminNotFound   = newError(ErrNotFound, "Admin not found")
	errClerkNotFound   = newError(ErrNotFound, "Clerk not found")
	errStudentNotFound = newError(ErrNotFound, "Student not found")
	errBadPassword     = newError(ErrInvalidCredentials, "Invalid credentials")
	errMissingLogin    = newError(ErrValidation, "Identifier and password are required")
)

type AuthService struct {
	admins      AdminStore
	clerks      ClerkStore
	students    StudentStore
	hasher      security.PasswordHasher
	dobFallback bool
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

func NewAuthService(
	admins AdminStore,
	clerks ClerkStore,
	students StudentStore,
	cfg config.SecurityConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		admins:      admins,
		clerks:      clerks,
		students:    students,
		hasher:      security.NewPasswordHasher(cfg.BcryptCost),
		dobFallback: cfg.StudentDOBFallback,
		metrics:     m,
		log:         log,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (models.Admin, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.Admin{}, errMissingLogin
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			s.metrics.Login(models.RoleAdmin, "not_found")
			return models.Admin{}, errAdminNotFound
		}
		return models.Admin{}, err
	}

	if !s.hasher.Verify(password, admin.PasswordHash) {
		s.metrics.Login(models.RoleAdmin, "bad_password")
		return models.Admin{}, errBadPassword
	}

	s.metrics.Login(models.RoleAdmin, "ok")
	return admin, nil
}

func (s *AuthService) LoginClerk(ctx context.Context, email, password string) (models.Clerk, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.Clerk{}, errMissingLogin
	}

	clerk, err := s.clerks.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrClerkNotFound) {
			s.metrics.Login(models.RoleClerk, "not_found")
			return models.Clerk{}, errClerkNotFound
		}
		return models.Clerk{}, err
	}

	if !s.hasher.Verify(password, clerk.PasswordHash) {
		s.metrics.Login(models.RoleClerk, "bad_password")
		return models.Clerk{}, errBadPassword
	}

	// Checked after the password so deactivation is only revealed to the owner.
	if !clerk.Active {
		s.metrics.Login(models.RoleClerk, "inactive")
		return models.Clerk{}, errAccountDeactivated
	}

	s.metrics.Login(models.RoleClerk, "ok")
	return clerk, nil
}

func (s *AuthService) LoginStudent(ctx context.Context, rollNo, password string) (models.Student, error) {
	rollNo = strings.TrimSpace(rollNo)
	if rollNo == "" || password == "" {
		return models.Student{}, errMissingLogin
	}

	student, err := s.students.FindByRollNo(ctx, rollNo)
	if err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			s.metrics.Login(models.RoleStudent, "not_found")
			return models.Student{}, errStudentNotFound
		}
		return models.Student{}, err
	}

	if !s.checkStudentSecret(student, password) {
		s.metrics.Login(models.RoleStudent, "bad_password")
		return models.Student{}, errBadPassword
	}

	s.metrics.Login(models.RoleStudent, "ok")
	return student, nil
}

// checkStudentSecret verifies the student's password, or, for students who
// never set one, their date of birth when the legacy fallback is enabled.
func (s *AuthService) checkStudentSecret(student models.Student, secret string) bool {
	if student.HasPassword() {
		return s.hasher.Verify(secret, student.PasswordHash)
	}
	if !s.dobFallback || student.DateOfBirth.IsZero() {
		return false
	}
	ok := strings.TrimSpace(secret) == student.DateOfBirth.Format(dobLayout)
	if ok {
		s.log.Warn().Str("roll_no", student.RollNo).Msg("student authenticated by date of birth")
	}
	return ok
}

func (s *AuthService) Admin(ctx context.Context, email string) (models.Admin, error) {
	admin, err := s.admins.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrAdminNotFound) {
		return models.Admin{}, errAdminNotFound
	}
	return admin, err
}

// Clerk loads the clerk behind a session. A clerk deactivated after login
// loses access here.
func (s *AuthService) Clerk(ctx context.Context, id int64) (models.Clerk, error) {
	clerk, err := s.clerks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrClerkNotFound) {
			return models.Clerk{}, errClerkNotFound
		}
		return models.Clerk{}, err
	}
	if !clerk.Active {
		return models.Clerk{}, errAccountDeactivated
	}
	return clerk, nil
}

func (s *AuthService) Student(ctx context.Context, rollNo string) (models.Student, error) {
	student, err := s.students.FindByRollNo(ctx, rollNo)
	if errors.Is(err, repository.ErrStudentNotFound) {
		return models.Student{}, errStudentNotFound
	}
	return student, err
}

func (s *AuthService) ChangeAdminPassword(ctx context.Context, email, current, next string) error {
	if err := validateNewPassword(current, next); err != nil {
		return err
	}
	admin, err := s.Admin(ctx, email)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, admin.PasswordHash) {
		return errBadPassword
	}
	return s.storeHash(next, func(hash []byte) error {
		return s.admins.UpdatePassword(ctx, admin.ID, hash)
	})
}

func (s *AuthService) ChangeClerkPassword(ctx context.Context, id int64, current, next string) error {
	if err := validateNewPassword(current, next); err != nil {
		return err
	}
	clerk, err := s.Clerk(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, clerk.PasswordHash) {
		return errBadPassword
	}
	return s.storeHash(next, func(hash []byte) error {
		return s.clerks.UpdatePassword(ctx, clerk.ID, hash)
	})
}

// ChangeStudentPassword also retires the date-of-birth login for the student.
func (s *AuthService) ChangeStudentPassword(ctx context.Context, rollNo, current, next string) error {
	if err := validateNewPassword(current, next); err != nil {
		return err
	}
	student, err := s.Student(ctx, rollNo)
	if err != nil {
		return err
	}
	if !s.checkStudentSecret(student, current) {
		return errBadPassword
	}
	return s.storeHash(next, func(hash []byte) error {
		return s.students.UpdatePassword(ctx, student.ID, hash)
	})
}

func (s *AuthService) storeHash(password string, update func([]byte) error) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	return update(hash)
}
