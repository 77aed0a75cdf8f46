package auth

import (
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
)

// AccessClaims represents the claims stored in a PASETO access token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
type AccessClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IsStaff reports whether the token belongs to an admin or librarian.
// The role claim is a snapshot from login; handlers that gate destructive
// actions re-read the user record instead of trusting it.
func (c *AccessClaims) IsStaff() bool {
	return c.Role == domain.RoleAdmin || c.Role == domain.RoleLibrarian
}
