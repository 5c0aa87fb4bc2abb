package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleViewer UserRole = "VIEWER"
)

// AdminLoginRequest exchanges the admin code for an access token.
type AdminLoginRequest struct {
	Code      string `json:"code" validate:"required,min=4,max=128"`
	Operator  string `json:"operator" validate:"omitempty,max=64"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AdminLoginResponse returns the issued token.
type AdminLoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int64    `json:"expires_in"`
	Role        UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	Operator string   `json:"operator"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the name recorded in audit logs for the token holder.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return "anonymous"
	}
	if c.Operator != "" {
		return c.Operator
	}
	return string(c.Role)
}
