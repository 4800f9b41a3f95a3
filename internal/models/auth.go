package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Capabilities is the typed privilege set resolved once at the auth boundary
// and threaded into the core. Privileged operations check these flags, never
// role strings.
type Capabilities struct {
	ReopenTerm        bool
	RedistributeExams bool
}

// CapabilitiesForRole maps a staff role to its capability set.
func CapabilitiesForRole(role UserRole) Capabilities {
	switch role {
	case RoleSuperAdmin, RoleDirector:
		return Capabilities{ReopenTerm: true, RedistributeExams: true}
	case RoleSecretary:
		return Capabilities{RedistributeExams: true}
	default:
		return Capabilities{}
	}
}
