package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"taskhub/internal/apperr"
)

const passwordSpecials = "@$!%*#?&"

// HashPassword produces a bcrypt hash of the plain password.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, "hash password", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches the stored hash.
func CheckPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidatePassword enforces the account password rule: 3-20 characters with
// at least one lowercase letter, one uppercase letter, one digit and one of
// @$!%*#?&. No other characters are allowed.
func ValidatePassword(plain string) error {
	if len(plain) < 3 || len(plain) > 20 {
		return apperr.E(apperr.Validation, "password must be 3 to 20 characters")
	}

	var lower, upper, digit, special bool
	for _, r := range plain {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return apperr.E(apperr.Validation, "password contains a character outside A-Z, a-z, 0-9 and @$!%*#?&")
		}
	}

	if !lower || !upper || !digit || !special {
		return apperr.E(apperr.Validation, "password needs at least one lowercase letter, one uppercase letter, one digit and one special character (@$!%*#?&)")
	}
	return nil
}
