package utils

import (
	"net/mail"
	"strings"
)

const MinPasswordLength = 8

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NormalizeEmail converts an email to the stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address (no display name).
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Field: "email", Message: "Please provide your email"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return &ValidationError{Field: "email", Message: "Please provide a valid email"}
	}
	return nil
}

// ValidateNewPassword checks length and that confirm matches.
func ValidateNewPassword(password, confirm string) error {
	if password == "" {
		return &ValidationError{Field: "password", Message: "Please provide a password"}
	}
	if len(password) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "Password must be at least 8 characters"}
	}
	if confirm == "" {
		return &ValidationError{Field: "passwordConfirm", Message: "Please confirm your password"}
	}
	if password != confirm {
		return &ValidationError{Field: "passwordConfirm", Message: "Passwords are not the same!"}
	}
	return nil
}
