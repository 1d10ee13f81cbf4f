package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// IdentityStore is the single narrow interface through which credentials
// are created, verified, and destroyed. The password hash never crosses
// this boundary in either direction.
type IdentityStore interface {
	CreateIdentity(ctx context.Context, username, email, password string) (Identity, error)
	VerifyIdentity(ctx context.Context, username, password string) (Identity, error)
	DeleteIdentity(ctx context.Context, username, password string) error
}

// TokenService mints and validates signed, time-bounded bearer credentials.
// Access tokens are never persisted; refresh tokens carry a jti so the
// revocation ledger can reference them without decoding the whole token.
type TokenService interface {
	IssueAccessToken(identity Identity) (string, error)
	IssueRefreshToken(identity Identity) (string, string, error)
	VerifyAccessToken(tokenString string) (AuthClaims, error)
	VerifyRefreshToken(tokenString string) (AuthClaims, error)
}

// RevocationLedger is the durable record of refresh tokens that have been
// explicitly invalidated. Revocation is permanent; entries are never removed.
type RevocationLedger interface {
	Revoke(ctx context.Context, jti, subject string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionTokens is the credential pair returned by register and login.
type SessionTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetPreviousSigningKeys() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetClockSkewLeeway() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetAuthScheme() string
}

// DefaultLogger returns the fallback stdout logger used when no Logger is
// injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
