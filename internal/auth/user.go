package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"strings"
	"unicode/utf8"

	"tunedeck/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the hashing cost used outside of tests
const DefaultBcryptCost = 12

// hashPassword hashes a plaintext password using bcrypt
func hashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword compares a bcrypt hash with a plaintext candidate
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateRandomPassword generates a cryptographically secure random password
func GenerateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	// Hex keeps it readable when printed to a terminal
	return hex.EncodeToString(bytes)[:length], nil
}

// normalizeEmail lower-cases and trims an email address
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks account fields before anything is stored
func validateRegistration(username, email, password string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case username == "":
		return apperr.Field(apperr.ErrValidation, "username", "Username is required")
	case n < 3 || n > 50:
		return apperr.Field(apperr.ErrValidation, "username", "Username must be between 3 and 50 characters")
	case strings.ContainsAny(username, "\x00\n\r"):
		return apperr.Field(apperr.ErrValidation, "username", "Username contains invalid characters")
	}

	if email == "" {
		return apperr.Field(apperr.ErrValidation, "email", "Email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Field(apperr.ErrValidation, "email", "Email is invalid")
	}

	switch {
	case len(password) < 6:
		return apperr.Field(apperr.ErrValidation, "password", "Password must be at least 6 characters")
	case len(password) > 72:
		// bcrypt ignores everything past 72 bytes
		return apperr.Field(apperr.ErrValidation, "password", "Password must be at most 72 bytes")
	}

	return nil
}
