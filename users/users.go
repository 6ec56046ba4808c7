package users

import (
	"net/mail"
	"strings"
	"time"
)

type User struct {
	ID          string    `json:"id,omitempty"`           // Unique identifier, used as the token owner
	Email       string    `json:"email,omitempty"`        // Contact address for the email delivery
	DisplayName string    `json:"display_name,omitempty"` // Name shown in the UI
	DateJoined  time.Time `json:"date_joined,omitempty"`  // Date and time when the user registered
	LastLogin   time.Time `json:"last_login,omitempty"`   // Last time a token was accepted for the user

	Verified bool `json:"verified,omitempty"` // Verified, has the user accepted at least one token
	Blocked  bool `json:"blocked,omitempty"`  // Blocked, blocked users cannot request tokens
}

// NormaliseEmail lower-cases and trims an address so lookups are case-insensitive.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address, e.g. "alice@example.com".
func ValidateEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
