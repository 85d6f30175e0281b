// Package servicetest provides in-memory stores with the same row semantics
// as the postgres repositories, for exercising services and handlers.
package servicetest

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"campusportal/internal/mail"
	"campusportal/internal/models"
	"campusportal/internal/repository"
	"campusportal/internal/security"
)

// Hasher uses the cheapest bcrypt cost to keep suites fast.
var Hasher = security.NewPasswordHasher(4)

func MustHash(pw string) []byte {
	h, err := Hasher.Hash(pw)
	if err != nil {
		panic(err)
	}
	return h
}

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// DB mirrors the row semantics of the postgres repositories.
type DB struct {
	mu       sync.Mutex
	admins   map[int64]*models.Admin
	clerks   map[int64]*models.Clerk
	students map[string]*models.Student
	resets   map[string]*models.ResetToken
	otps     map[string]*models.EmailOTP
	nextID   int64
}

func NewDB() *DB {
	return &DB{
		admins:   map[int64]*models.Admin{},
		clerks:   map[int64]*models.Clerk{},
		students: map[string]*models.Student{},
		resets:   map[string]*models.ResetToken{},
		otps:     map[string]*models.EmailOTP{},
	}
}

func (db *DB) AddAdmin(email, password string) models.Admin {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	a := &models.Admin{ID: db.nextID, Name: "Admin", Email: email, PasswordHash: MustHash(password)}
	db.admins[a.ID] = a
	return *a
}

func (db *DB) AddClerk(email, password string, role models.ClerkRole, active bool) models.Clerk {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	c := &models.Clerk{ID: db.nextID, Name: "Clerk", Email: email, PasswordHash: MustHash(password), Role: role, Active: active}
	db.clerks[c.ID] = c
	return *c
}

func (db *DB) AddStudent(s models.Student) models.Student {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.nextID++
	s.ID = db.nextID
	db.students[s.RollNo] = &s
	return s
}

func (db *DB) Student(rollNo string) models.Student {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.students[rollNo]
}

func (db *DB) ResetCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.resets)
}

func (db *DB) OTPCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.otps)
}

type AdminStore struct{ db *DB }

func (f AdminStore) FindByEmail(_ context.Context, email string) (models.Admin, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, a := range f.db.admins {
		if strings.EqualFold(a.Email, email) {
			return *a, nil
		}
	}
	return models.Admin{}, repository.ErrAdminNotFound
}

func (f AdminStore) UpdatePassword(_ context.Context, id int64, hash []byte) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.setPassword(models.RoleAdmin, id, hash)
}

type ClerkStore struct{ db *DB }

func (f ClerkStore) FindByEmail(_ context.Context, email string) (models.Clerk, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, c := range f.db.clerks {
		if strings.EqualFold(c.Email, email) {
			return *c, nil
		}
	}
	return models.Clerk{}, repository.ErrClerkNotFound
}

func (f ClerkStore) GetByID(_ context.Context, id int64) (models.Clerk, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if c, ok := f.db.clerks[id]; ok {
		return *c, nil
	}
	return models.Clerk{}, repository.ErrClerkNotFound
}

func (f ClerkStore) UpdatePassword(_ context.Context, id int64, hash []byte) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.setPassword(models.RoleClerk, id, hash)
}

type StudentStore struct{ db *DB }

func (f StudentStore) FindByRollNo(_ context.Context, rollNo string) (models.Student, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if s, ok := f.db.students[rollNo]; ok {
		return *s, nil
	}
	return models.Student{}, repository.ErrStudentNotFound
}

func (f StudentStore) UpdatePassword(_ context.Context, id int64, hash []byte) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.setPassword(models.RoleStudent, id, hash)
}

func (f StudentStore) UpdateAvatar(_ context.Context, rollNo string, url string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.students[rollNo]
	if !ok {
		return repository.ErrStudentNotFound
	}
	s.AvatarURL = &url
	return nil
}

// setPassword expects db.mu to be held.
func (db *DB) setPassword(role models.Role, id int64, hash []byte) error {
	switch role {
	case models.RoleAdmin:
		if a, ok := db.admins[id]; ok {
			a.PasswordHash = hash
			return nil
		}
		return repository.ErrAdminNotFound
	case models.RoleClerk:
		if c, ok := db.clerks[id]; ok {
			c.PasswordHash = hash
			return nil
		}
		return repository.ErrClerkNotFound
	case models.RoleStudent:
		for _, s := range db.students {
			if s.ID == id {
				s.PasswordHash = hash
				return nil
			}
		}
		return repository.ErrStudentNotFound
	}
	return errors.New("unknown role")
}

type ResetStore struct{ db *DB }

func (f ResetStore) Create(ctx context.Context, token models.ResetToken, deliver func(context.Context) error) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	// Nothing is written until delivery succeeds, as with a rolled back tx.
	if deliver != nil {
		if err := deliver(ctx); err != nil {
			return err
		}
	}
	for digest, t := range f.db.resets {
		if t.UserID == token.UserID && t.UserType == token.UserType && !t.Used() {
			delete(f.db.resets, digest)
		}
	}
	f.db.nextID++
	token.ID = f.db.nextID
	f.db.resets[token.TokenHash] = &token
	return nil
}

func (f ResetStore) check(digest string, now time.Time) (*models.ResetToken, error) {
	t, ok := f.db.resets[digest]
	if !ok {
		return nil, repository.ErrResetTokenNotFound
	}
	if t.Used() {
		return nil, repository.ErrResetTokenUsed
	}
	if t.Expired(now) {
		delete(f.db.resets, digest)
		return nil, repository.ErrResetTokenExpired
	}
	return t, nil
}

func (f ResetStore) Inspect(_ context.Context, digest string, now time.Time) (models.ResetToken, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, err := f.check(digest, now)
	if err != nil {
		return models.ResetToken{}, err
	}
	return *t, nil
}

func (f ResetStore) ResetPassword(_ context.Context, digest string, hash []byte, now time.Time) (models.ResetToken, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, err := f.check(digest, now)
	if err != nil {
		return models.ResetToken{}, err
	}
	id, err := strconv.ParseInt(t.UserID, 10, 64)
	if err != nil {
		return models.ResetToken{}, err
	}
	if err := f.db.setPassword(t.UserType, id, hash); err != nil {
		return models.ResetToken{}, err
	}
	used := now
	t.UsedAt = &used
	return *t, nil
}

type OTPStore struct{ db *DB }

func (f OTPStore) Upsert(_ context.Context, otp models.EmailOTP) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	otp.Attempts = 0
	f.db.otps[otp.RollNo] = &otp
	return nil
}

func (f OTPStore) ConsumeEmailChange(_ context.Context, rollNo, digest string, now time.Time) (string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	otp, ok := f.db.otps[rollNo]
	if !ok {
		return "", repository.ErrOTPNotFound
	}
	if otp.CodeHash != digest {
		otp.Attempts++
		if otp.Attempts >= models.MaxOTPAttempts {
			delete(f.db.otps, rollNo)
			return "", repository.ErrOTPLocked
		}
		return "", repository.ErrOTPNotFound
	}
	if otp.Expired(now) {
		delete(f.db.otps, rollNo)
		return "", repository.ErrOTPExpired
	}
	// A failed update rolls the claim back, leaving the OTP in place.
	for _, s := range f.db.students {
		if s.RollNo != rollNo && s.Email == otp.NewEmail {
			return "", repository.ErrDuplicate
		}
	}
	delete(f.db.otps, rollNo)
	s, ok := f.db.students[rollNo]
	if !ok {
		return "", repository.ErrStudentNotFound
	}
	s.Email = otp.NewEmail
	s.EmailVerified = true
	return otp.NewEmail, nil
}

// Mailer records sent messages. A non-nil Err fails every send.
type Mailer struct {
	mu   sync.Mutex
	sent []mail.Message
	Err  error
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

// DenyAll is a limiter that refuses everything.
type DenyAll struct{}

func (DenyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func (db *DB) Admins() AdminStore     { return AdminStore{db} }
func (db *DB) Clerks() ClerkStore     { return ClerkStore{db} }
func (db *DB) Students() StudentStore { return StudentStore{db} }
func (db *DB) Resets() ResetStore     { return ResetStore{db} }
func (db *DB) OTPs() OTPStore         { return OTPStore{db} }

func (db *DB) SetClerkActive(id int64, active bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if c, ok := db.clerks[id]; ok {
		c.Active = active
	}
}

func (db *DB) HasReset(digest string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.resets[digest]
	return ok
}
