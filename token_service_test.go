package auth_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/pantry-auth"
	"github.com/goliatone/pantry-auth/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIdentity struct {
	id       string
	username string
	email    string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.username }
func (t testIdentity) Email() string    { return t.email }

var alice = testIdentity{
	id:       "9b7f03b1-3d5e-4761-a8c5-6a5c77e6b1f0",
	username: "alice",
	email:    "alice@example.com",
}

func testAuthConfig() config.Auth {
	return config.Auth{
		SigningKey:           "test-signing-key-that-is-long-enough",
		AccessTTLExpression:  "15m",
		RefreshTTLExpression: "168h",
		Issuer:               "pantry-auth",
	}
}

func TestTokenServiceRoundTrip(t *testing.T) {
	ts := auth.NewTokenService(testAuthConfig(), nil)

	token, err := ts.IssueAccessToken(alice)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ts.VerifyAccessToken(token)
	require.NoError(t, err)

	assert.Equal(t, "alice", claims.Subject())
	assert.Equal(t, alice.id, claims.UserID())
	assert.Equal(t, auth.TokenUseAccess, claims.TokenUse())
}

func TestTokenServiceRefreshCarriesTokenID(t *testing.T) {
	ts := auth.NewTokenService(testAuthConfig(), nil)

	token, jti, err := ts.IssueRefreshToken(alice)
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := ts.VerifyRefreshToken(token)
	require.NoError(t, err)

	assert.Equal(t, jti, claims.TokenID())
	assert.Equal(t, "alice", claims.Subject())
	assert.Equal(t, auth.TokenUseRefresh, claims.TokenUse())
}

func TestTokenServiceRefreshTokensAreUnique(t *testing.T) {
	ts := auth.NewTokenService(testAuthConfig(), nil)

	_, first, err := ts.IssueRefreshToken(alice)
	require.NoError(t, err)

	_, second, err := ts.IssueRefreshToken(alice)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestTokenServiceUseMismatch(t *testing.T) {
	ts := auth.NewTokenService(testAuthConfig(), nil)

	access, err := ts.IssueAccessToken(alice)
	require.NoError(t, err)

	refresh, _, err := ts.IssueRefreshToken(alice)
	require.NoError(t, err)

	_, err = ts.VerifyRefreshToken(access)
	assert.ErrorIs(t, err, auth.ErrTokenUseMismatch)

	_, err = ts.VerifyAccessToken(refresh)
	assert.ErrorIs(t, err, auth.ErrTokenUseMismatch)
}

func TestTokenServiceExpiry(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt

	ts := auth.NewTokenService(testAuthConfig(), nil).
		WithClock(func() time.Time { return clock })

	token, err := ts.IssueAccessToken(alice)
	require.NoError(t, err)

	clock = issuedAt.Add(14 * time.Minute)
	_, err = ts.VerifyAccessToken(token)
	assert.NoError(t, err)

	clock = issuedAt.Add(16 * time.Minute)
	_, err = ts.VerifyAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
	assert.True(t, auth.IsTokenExpiredError(err))
}

func TestTokenServiceClockSkewLeeway(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt

	cfg := testAuthConfig()
	cfg.LeewayExpression = "30s"

	ts := auth.NewTokenService(cfg, nil).
		WithClock(func() time.Time { return clock })

	token, err := ts.IssueAccessToken(alice)
	require.NoError(t, err)

	// 20s past expiry still verifies inside the 30s leeway window.
	clock = issuedAt.Add(15*time.Minute + 20*time.Second)
	_, err = ts.VerifyAccessToken(token)
	assert.NoError(t, err)

	clock = issuedAt.Add(15*time.Minute + 40*time.Second)
	_, err = ts.VerifyAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenServiceKeyRollover(t *testing.T) {
	oldCfg := testAuthConfig()

	newCfg := testAuthConfig()
	newCfg.SigningKey = "rotated-signing-key-that-is-long-enough"
	newCfg.PreviousSigningKeys = []string{oldCfg.SigningKey}

	oldService := auth.NewTokenService(oldCfg, nil)
	newService := auth.NewTokenService(newCfg, nil)

	token, err := oldService.IssueAccessToken(alice)
	require.NoError(t, err)

	claims, err := newService.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())

	// The old service has never seen the rotated key.
	fresh, err := newService.IssueAccessToken(alice)
	require.NoError(t, err)

	_, err = oldService.VerifyAccessToken(fresh)
	assert.Error(t, err)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	ts := auth.NewTokenService(testAuthConfig(), nil)

	tests := []struct {
		name  string
		token string
	}{
		{"Empty string", ""},
		{"Not a JWT", "definitely-not-a-jwt"},
		{"Truncated JWT", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhbGljZSJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.VerifyAccessToken(tt.token)
			assert.Error(t, err)
			assert.True(t, auth.IsMalformedError(err))
		})
	}
}
