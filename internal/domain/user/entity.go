package user

import (
	"database/sql"
	"strings"
	"time"
)

// PublicIDLength is the length of the hex token shown to other users.
const PublicIDLength = 10

// User represents the users table
type User struct {
	ID           int64
	PublicID     string
	DisplayName  string
	PhoneNumber  string
	PasswordHash sql.NullString
	CreatedAt    time.Time
	LastSeenAt   sql.NullTime
	IsOnline     bool
	IsActive     bool
}

// HasCredential reports whether the account was registered with a password.
// Older accounts authenticate by phone number alone.
func (u User) HasCredential() bool {
	return u.PasswordHash.Valid && u.PasswordHash.String != ""
}

// IsValidPublicID checks the shape of a public id: ten upper-case hex characters.
func IsValidPublicID(id string) bool {
	if len(id) != PublicIDLength {
		return false
	}
	for _, r := range id {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return false
		}
	}
	return true
}

// NormalizePhone strips spaces and dashes from a phone number.
func NormalizePhone(phone string) string {
	replacer := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(phone))
}
