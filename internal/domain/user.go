package domain

import (
	"strings"
	"time"
)

// User represents a registered account.
type User struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeEmail returns the canonical form used for storage and lookups.
// Emails are compared case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
