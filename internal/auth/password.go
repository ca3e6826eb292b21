package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 6
	maxPasswordBytes  = 72
)

// ValidatePassword applies the length rule shared by every path that sets a
// password. bcrypt ignores input past 72 bytes.
func ValidatePassword(secret string) error {
	if utf8.RuneCountInString(secret) < minPasswordLength || len(secret) > maxPasswordBytes {
		return ErrPasswordLength
	}
	return nil
}

// HashPassword derives a salted bcrypt hash at the library's default cost.
func HashPassword(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether secret matches hashed. A mismatch is a plain
// false; only a stored hash bcrypt cannot read is an error.
func VerifyPassword(secret, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}
