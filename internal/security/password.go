package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultBcryptCost = 10

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return PasswordHasher{cost: cost}
}

func (h PasswordHasher) Hash(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// Verify reports whether password matches encodedHash. A corrupted or empty
// hash is a mismatch, not an error.
func (h PasswordHasher) Verify(password string, encodedHash []byte) bool {
	if len(encodedHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(encodedHash, []byte(password)) == nil
}

func HashPassword(password string) ([]byte, error) {
	return NewPasswordHasher(DefaultBcryptCost).Hash(password)
}

func VerifyPassword(password string, encodedHash []byte) bool {
	return NewPasswordHasher(DefaultBcryptCost).Verify(password, encodedHash)
}
