package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenUse discriminates the two credential kinds minted by the TokenService.
type TokenUse string

const (
	TokenUseAccess  TokenUse = "access"
	TokenUseRefresh TokenUse = "refresh"
)

// AuthClaims is the verified content of a bearer credential.
type AuthClaims interface {
	Subject() string
	UserID() string
	TokenID() string
	TokenUse() TokenUse
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The registered
// subject carries the username; UID carries the identity's storage id so
// downstream services can address the record without a lookup.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID string   `json:"uid,omitempty"`
	Use TokenUse `json:"use,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// TokenID returns the jti claim
func (c *JWTClaims) TokenID() string {
	return c.RegisteredClaims.ID
}

// TokenUse returns the credential kind the token was minted as
func (c *JWTClaims) TokenUse() TokenUse {
	return c.Use
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
