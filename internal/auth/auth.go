// Package auth validates session tokens handed to the gateway at
// WebSocket connect time, per spec.md §6.2 ("Session token
// validation. Verifies token bound at connect; returns authenticated
// user id or rejects"). Token issuance and credential hashing live
// outside this system (spec.md Non-goals); this package only verifies.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification:
// bad signature, expired, malformed, or missing the subject claim.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the session token's payload. Subject (sub) carries the
// authenticated user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// Validator verifies HS256-signed session tokens against a shared secret.
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator over secret (internal/config.Config.JWTSecret).
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Identity is the result of a successful token validation.
type Identity struct {
	UserID   string
	Username string
}

// Validate parses and verifies tokenString, returning the bound
// identity or ErrInvalidToken.
func (v *Validator) Validate(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Username: claims.Username}, nil
}
