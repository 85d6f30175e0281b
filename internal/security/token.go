package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campusportal/internal/models"
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// SessionClaims is the union of the three session claim shapes. Only the
// fields for the token's audience are populated:
//
//	admin:   {email, role:"admin"}
//	clerk:   {clerkId, email, role:<desk>}
//	student: {student_id, roll_no, name}
type SessionClaims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	ClerkID   int64  `json:"clerkId,omitempty"`
	StudentID int64  `json:"student_id,omitempty"`
	RollNo    string `json:"roll_no,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func AdminClaims(admin models.Admin) SessionClaims {
	return SessionClaims{Email: admin.Email, Role: string(models.RoleAdmin)}
}

func ClerkClaims(clerk models.Clerk) SessionClaims {
	return SessionClaims{ClerkID: clerk.ID, Email: clerk.Email, Role: string(clerk.Role)}
}

func StudentClaims(student models.Student) SessionClaims {
	return SessionClaims{StudentID: student.ID, RollNo: student.RollNo, Name: student.Name}
}

// ClerkRole is only meaningful on clerk tokens.
func (c SessionClaims) ClerkRole() models.ClerkRole {
	return models.ParseClerkRole(c.Role)
}

func (c SessionClaims) subject(role models.Role) string {
	switch role {
	case models.RoleStudent:
		return c.RollNo
	default:
		return c.Email
	}
}

// TokenService signs and verifies HS256 session tokens with one process-wide
// secret. Rotating the secret invalidates every outstanding session.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{secret: []byte(secret), now: now}
}

func (s *TokenService) Issue(role models.Role, claims SessionClaims, ttl time.Duration) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("issue token: unknown role %q", role)
	}
	now := s.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.subject(role),
		Audience:  jwt.ClaimStrings{string(role)},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if role == models.RoleAdmin {
		claims.Role = string(models.RoleAdmin)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, expiry and audience. Every failure is
// ErrTokenInvalid except a well-signed token past its expiry, which is
// ErrTokenExpired.
func (s *TokenService) Verify(role models.Role, tokenStr string) (*SessionClaims, error) {
	if tokenStr == "" {
		return nil, ErrTokenInvalid
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(string(role)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if role == models.RoleAdmin && claims.Role != string(models.RoleAdmin) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
