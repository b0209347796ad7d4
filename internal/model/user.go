package model

import "time"

// Role is the authorization level of a user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// User represents an application user record as stored in the
// `users` table.  PasswordHash never leaves the process; it is
// excluded from JSON output.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN or USER.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Name         string    `json:"name"`       // users.name
	Email        string    `json:"email"`      // users.email
	PasswordHash string    `json:"-"`          // users.password_hash
	Role         Role      `json:"role"`       // users.role
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
