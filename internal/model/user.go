// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a blog account.
//
// An account is reachable by email, by Google ID, or both. Email is the
// linking key: a Google login whose email matches an existing password
// account attaches the Google ID to that row instead of creating a new one.
//
// WHY POINTERS FOR Name, PasswordHash, GoogleID, AvatarURL?
// Each of them is genuinely optional and NULL in the database:
//   - PasswordHash is NULL for accounts created through Google
//   - GoogleID is NULL until the account signs in with Google
//   - Name and AvatarURL are not collected at password registration
//
// A nil pointer maps to SQL NULL through sqlx without extra scanning code.
type User struct {
	ID           int64     `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Name         *string   `json:"name"      db:"name"`
	PasswordHash *string   `json:"-"         db:"password_hash"`
	GoogleID     *string   `json:"-"         db:"google_id"`
	AvatarURL    *string   `json:"avatarUrl" db:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether the account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName returns the name, or "" when none is set.
func (u *User) DisplayName() string {
	if u.Name == nil {
		return ""
	}
	return *u.Name
}

// Identity is the public face of a user attached to content they authored.
// Queries select it with dotted aliases ("user.id", "user.name", ...) so
// sqlx can scan it as a nested struct.
type Identity struct {
	ID        int64   `json:"id"        db:"id"`
	Name      *string `json:"name"      db:"name"`
	AvatarURL *string `json:"avatarUrl" db:"avatar_url"`
}
