package domain

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// User is a ledger account holder. The auth core reads it for credential checks and the
// admin gate; it never owns it.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string // bcrypt; never plaintext
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Validate checks the fields persisted for a user.
func (u *User) Validate() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.ID, validation.Required),
		validation.Field(&u.Username, validation.Required, validation.Length(3, 50), validation.Match(usernamePattern)),
		validation.Field(&u.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&u.FullName, validation.Length(0, 200)),
		validation.Field(&u.PasswordHash, validation.Required),
	)
}
