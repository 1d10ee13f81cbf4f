package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	TextCodeInvalidEmail       = "INVALID_EMAIL"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeTokenUseMismatch   = "TOKEN_USE_MISMATCH"
	TextCodeLedgerUnavailable  = "LEDGER_UNAVAILABLE"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	TextCodeSessionNotCreated  = "SESSION_NOT_ESTABLISHED"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeSubjectMismatch    = "SUBJECT_MISMATCH"
)

// ErrInvalidCredentials is the single authentication failure surfaced to
// callers. Not-found and bad-password collapse into it so responses cannot
// be used to enumerate usernames.
var ErrInvalidCredentials = errors.New("Invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrIdentityNotFound is returned by destructive operations that are allowed
// to acknowledge a missing record (unregister).
var ErrIdentityNotFound = errors.New("User not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound)

// ErrDuplicateIdentity covers both username and email collisions.
var ErrDuplicateIdentity = errors.New("A user with that username or email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity)

// ErrInvalidEmail rejects addresses that fail the syntactic check.
var ErrInvalidEmail = errors.New("Invalid email address", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

var ErrTokenExpired = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

var ErrTokenMalformed = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenRevoked is returned for any refresh attempt presenting a jti that
// appears in the revocation ledger. Permanent; there is no un-revoke.
var ErrTokenRevoked = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked)

// ErrTokenUseMismatch rejects an access token presented where a refresh
// token is expected, and vice versa.
var ErrTokenUseMismatch = errors.New("Invalid or expired token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenUseMismatch)

// ErrLedgerUnavailable means revocation status could not be determined. The
// orchestrator fails closed on it: refresh is denied, logout reports the
// outage instead of a success it cannot back with a durable entry.
var ErrLedgerUnavailable = errors.New("revocation ledger unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeLedgerUnavailable)

// ErrStoreUnavailable wraps transport failures talking to the credential store.
var ErrStoreUnavailable = errors.New("credential store unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeStoreUnavailable)

// ErrSessionNotEstablished reports the partial register outcome: the identity
// exists but no token pair could be minted for it.
var ErrSessionNotEstablished = errors.New("User registered, but a session could not be established", errors.CategoryInternal).
	WithTextCode(TextCodeSessionNotCreated)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsAuthError reports whether the error belongs to the authentication
// category of the taxonomy (never retried, 400/401 on the wire).
func IsAuthError(err error) bool {
	var richErr *errors.Error
	return errors.As(err, &richErr) && richErr.Category == errors.CategoryAuth
}

// IsUpstreamError reports whether the error represents an unreachable or
// timed-out dependency (retryable by the caller, 502 on the wire).
func IsUpstreamError(err error) bool {
	var richErr *errors.Error
	return errors.As(err, &richErr) && richErr.Category == errors.CategoryOperation
}
