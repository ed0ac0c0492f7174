package types

import "time"

// Role is the closed set of authorization levels a user can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a forum account.
// It contains identity, credential, role, and moderation state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// MutedUntil marks the end of an active mute window. Nil means the user
	// is not muted.
	MutedUntil *time.Time `json:"muted_until,omitempty" db:"muted_until"`

	// BannedUntil marks the end of an active ban window. Nil means the user
	// is not banned.
	BannedUntil *time.Time `json:"banned_until,omitempty" db:"banned_until"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsMutedAt reports whether the user's mute window is active at the given
// instant. The flag is always derived from the stored timestamp, never
// stored itself, so an elapsed window lapses without any explicit unmute.
func (u User) IsMutedAt(now time.Time) bool {
	return u.MutedUntil != nil && u.MutedUntil.After(now)
}

// IsBannedAt reports whether the user's ban window is active at the given
// instant.
func (u User) IsBannedAt(now time.Time) bool {
	return u.BannedUntil != nil && u.BannedUntil.After(now)
}
