// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.
package auth

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleInstaller Role = "installer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleInstaller
}

// HomePath returns the landing area for the role.
func (r Role) HomePath() string {
	if r == RoleAdmin {
		return "/admin"
	}
	return "/installer"
}

// Identity is the user record resolved from a validated access token.
// Owned by the users table; the session core only reads it.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IsInstaller reports whether the identity carries the installer role.
func (i Identity) IsInstaller() bool { return i.Role == RoleInstaller }

// Subject is what the identity provider confirms about a token: the
// provider-side user id and, when known, the email it was issued for.
type Subject struct {
	UserID string
	Email  string
}

// TokenPair is a freshly minted access/refresh credential pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// Subject identifies the user the pair belongs to.
	Subject Subject
	// ExpiresAt is the provider's access-token expiry, zero when unknown.
	ExpiresAt time.Time
}
