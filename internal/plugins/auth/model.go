// Package auth handles user accounts, password security, session management,
// and the authorization middleware for TinyLog. It provides registration
// (captcha-gated), login, logout, and bearer-token session validation backed
// by Redis.
package auth

import (
	"time"
)

// User represents a registered TinyLog user. This is the domain model used
// throughout the application. Database scanning uses this struct directly;
// API responses go through UserResource so internal fields never leak.
type User struct {
	ID           string    `json:"-"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // Never expose.
	CreatedAt    time.Time `json:"-"`
}

// Session represents an authenticated session stored in Redis. The token is
// the key (prefixed), and this struct is the value (JSON-encoded). Expiry is
// an explicit timestamp checked at validation time, not a property of the
// storage layer.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the registration payload.
type RegisterRequest struct {
	CaptchaToken string `json:"captcha_token"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DisplayName  string `json:"display_name"`
}

// LoginRequest holds the login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned to the client on successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
}

// --- Service Input DTOs (passed from handler to service) ---

// RegisterInput is the validated input for creating a new user.
type RegisterInput struct {
	CaptchaToken string
	Username     string
	Password     string
	DisplayName  string
}

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Username string
	Password string
}

// --- Resource representation ---

// UserResource is the external representation of a user. Every resource
// carries a _link field: the absolute URL to itself.
type UserResource struct {
	Link        string `json:"_link"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Resource renders the user against the given request root, e.g.
// root "https://host" becomes {"_link": "https://host/users/alice", ...}.
func (u *User) Resource(root string) UserResource {
	return UserResource{
		Link:        root + "/users/" + u.Username,
		Username:    u.Username,
		DisplayName: u.DisplayName,
	}
}
