package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("token expired")

// StringList tolerates claims the backend emits either as a single string
// or as an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*l = nil
		return nil
	}
	*l = []string{one}
	return nil
}

type Claims struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	// RawRoles is keyed by the claim name the backend's identity stack
	// emits for role membership.
	RawRoles    StringList `json:"http://schemas.microsoft.com/ws/2008/06/identity/claims/role,omitempty"`
	Roles       StringList `json:"-"`
	Permissions StringList `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses a token without verifying its signature. The client trusts
// the transport that delivered the token; authenticity is the backend's
// concern on every request that carries it.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	claims.Roles = claims.RawRoles
	return claims, nil
}

// ValidAt reports whether the claims carry an expiry in the future of now.
// Tokens without an exp claim are rejected outright.
func (c *Claims) ValidAt(now time.Time) error {
	if c.ExpiresAt == nil {
		return errors.New("token has no expiry")
	}
	if !now.Before(c.ExpiresAt.Time) {
		return ErrTokenExpired
	}
	return nil
}
