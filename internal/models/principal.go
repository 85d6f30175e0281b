package models

import "time"

// Role names one of the three session partitions of the portal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleClerk   Role = "clerk"
	RoleStudent Role = "student"
)

var Roles = []Role{RoleAdmin, RoleClerk, RoleStudent}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleClerk, RoleStudent:
		return true
	}
	return false
}

// ClerkRole is the clerk's desk. Unknown values collapse to ClerkRoleOther.
type ClerkRole string

const (
	ClerkRoleScholarship ClerkRole = "scholarship"
	ClerkRoleAdmission   ClerkRole = "admission"
	ClerkRoleFaculty     ClerkRole = "faculty"
	ClerkRoleOther       ClerkRole = "other"
)

func ParseClerkRole(s string) ClerkRole {
	switch ClerkRole(s) {
	case ClerkRoleScholarship, ClerkRoleAdmission, ClerkRoleFaculty:
		return ClerkRole(s)
	}
	return ClerkRoleOther
}

type Admin struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Clerk struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
	Role         ClerkRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Student may have no password yet; PasswordHash is nil in that case.
type Student struct {
	ID            int64
	Name          string
	RollNo        string
	Email         string
	EmailVerified bool
	DateOfBirth   time.Time
	PasswordHash  []byte
	AvatarURL     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s Student) HasPassword() bool {
	return len(s.PasswordHash) > 0
}
