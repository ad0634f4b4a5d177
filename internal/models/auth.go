package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a session token. The absolute expiry lives
// in RegisteredClaims.ExpiresAt and the token id in RegisteredClaims.ID.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
