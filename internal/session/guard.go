package session

import (
	"strings"

	"campusportal/internal/models"
	"campusportal/internal/security"
)

const LandingPath = "/"

// Lookup returns the verified claims for role, or nil when the role's cookie
// is missing or fails verification.
type Lookup func(role models.Role) *security.SessionClaims

// Dashboard is the canonical landing page for a session of role.
func Dashboard(role models.Role, claims security.SessionClaims) string {
	switch role {
	case models.RoleAdmin:
		return "/admin/dashboard"
	case models.RoleStudent:
		return "/student/dashboard"
	case models.RoleClerk:
		switch claims.ClerkRole() {
		case models.ClerkRoleScholarship:
			return "/clerk/scholarship/dashboard"
		case models.ClerkRoleAdmission:
			return "/clerk/admission/dashboard"
		case models.ClerkRoleFaculty:
			return "/clerk/faculty/dashboard"
		case models.ClerkRoleOther:
			return LandingPath
		}
	}
	return LandingPath
}

// Partition reports which role owns path, if any.
func Partition(path string) (models.Role, bool) {
	for _, role := range models.Roles {
		root := "/" + string(role)
		if path == root || strings.HasPrefix(path, root+"/") {
			return role, true
		}
	}
	return "", false
}

// Decide returns the redirect target for a request to path, or "" to let the
// request through. It is evaluated on every request; nothing is cached.
func Decide(path string, lookup Lookup) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if path == LandingPath {
		for _, role := range models.Roles {
			claims := lookup(role)
			if claims == nil {
				continue
			}
			if target := Dashboard(role, *claims); target != path {
				return target
			}
			return ""
		}
		return ""
	}

	role, ok := Partition(path)
	if !ok {
		return ""
	}

	claims := lookup(role)
	if claims == nil {
		return LandingPath
	}
	if path == "/"+string(role) {
		return Dashboard(role, *claims)
	}
	return ""
}
