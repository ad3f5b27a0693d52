// Package auth identifies callers of the guarded SMTP endpoints. Users log
// in with email and password (argon2id hashes in MariaDB) and receive an
// opaque session token stored in Redis. The token travels in a cookie for
// browsers or as a Bearer token for API clients.
package auth

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Role names. Roles are coarse labels; what each role may do is decided by
// the authz policy, not here.
const (
	RoleAdministrator = "Administrator"
	RoleSystemManager = "System Manager"
)

// User is a person who can log in. Roles are stored comma-separated.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	Roles        []string   `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// parseRoles splits the stored column into trimmed, non-empty, unique names.
func parseRoles(s string) []string {
	roles := lo.FilterMap(strings.Split(s, ","), func(r string, _ int) (string, bool) {
		r = strings.TrimSpace(r)
		return r, r != ""
	})
	return lo.Uniq(roles)
}

// joinRoles is the inverse of parseRoles.
func joinRoles(roles []string) string {
	return strings.Join(parseRoles(strings.Join(roles, ",")), ",")
}

// LoginRequest is the JSON body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginInput is the validated input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResponse is returned on successful login. API clients send Token
// back as a Bearer token.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Session represents an authenticated user session stored in Redis.
// The session token is the key, and this struct is the value (JSON-encoded).
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}
