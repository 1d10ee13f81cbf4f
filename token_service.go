package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey  []byte
	verifyKeys  [][]byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	leeway      time.Duration
	issuer      string
	audience    jwt.ClaimStrings
	logger      Logger
	now         func() time.Time
}

// NewTokenService creates a new TokenService instance. The signing key is
// explicit construction-time state, never package-level, so the verifier can
// run with a rotated key set.
func NewTokenService(cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}

	verifyKeys := [][]byte{[]byte(cfg.GetSigningKey())}
	for _, k := range cfg.GetPreviousSigningKeys() {
		if k != "" {
			verifyKeys = append(verifyKeys, []byte(k))
		}
	}

	return &TokenServiceImpl{
		signingKey: []byte(cfg.GetSigningKey()),
		verifyKeys: verifyKeys,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		leeway:     cfg.GetClockSkewLeeway(),
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Expiry tests need a pinned clock.
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// IssueAccessToken mints a short-lived stateless credential for the subject.
func (ts *TokenServiceImpl) IssueAccessToken(identity Identity) (string, error) {
	claims := ts.newClaims(identity, TokenUseAccess, ts.accessTTL)
	return ts.signClaims(claims)
}

// IssueRefreshToken mints a long-lived credential and returns it along with
// its jti, which is the only handle the revocation ledger needs.
func (ts *TokenServiceImpl) IssueRefreshToken(identity Identity) (string, string, error) {
	claims := ts.newClaims(identity, TokenUseRefresh, ts.refreshTTL)
	token, err := ts.signClaims(claims)
	if err != nil {
		return "", "", err
	}
	return token, claims.RegisteredClaims.ID, nil
}

// VerifyAccessToken validates signature and expiry and extracts the subject.
// It performs no I/O.
func (ts *TokenServiceImpl) VerifyAccessToken(tokenString string) (AuthClaims, error) {
	return ts.verify(tokenString, TokenUseAccess)
}

// VerifyRefreshToken validates a refresh token. It does not consult the
// revocation ledger; that is the session orchestrator's call to make.
func (ts *TokenServiceImpl) VerifyRefreshToken(tokenString string) (AuthClaims, error) {
	claims, err := ts.verify(tokenString, TokenUseRefresh)
	if err != nil {
		return nil, err
	}
	if claims.TokenID() == "" {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (ts *TokenServiceImpl) newClaims(identity Identity, use TokenUse, ttl time.Duration) *JWTClaims {
	now := ts.now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.Username(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID: identity.ID(),
		Use: use,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func (ts *TokenServiceImpl) signClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) verify(tokenString string, expected TokenUse) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithLeeway(ts.leeway),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	var lastErr error
	for _, key := range ts.verifyKeys {
		key := key
		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		}, parserOptions...)

		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			// A signature mismatch may just mean an older key signed it.
			if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
				lastErr = err
				continue
			}
			return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			ts.logger.Error("TokenService verify could not decode or validate claims")
			return nil, ErrTokenMalformed
		}

		if claims.Use != expected {
			return nil, ErrTokenUseMismatch
		}

		return claims, nil
	}

	if lastErr != nil {
		return nil, errors.Wrap(lastErr, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}
	return nil, ErrTokenMalformed
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}

var _ TokenService = (*TokenServiceImpl)(nil)
