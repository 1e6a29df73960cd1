package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the JWT claims issued on login. Tokens are bound to the
// session they were issued for; terminating the session invalidates refresh.
type TokenClaims struct {
	Type        string `json:"type"` // "access" or "refresh"
	PrincipalID string `json:"principal_id"`
	SessionID   string `json:"session_id"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
