package jwtware_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/pantry-auth/middleware/jwtware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticClaims struct {
	subject string
}

func (s staticClaims) Subject() string     { return s.subject }
func (s staticClaims) UserID() string      { return "uid-" + s.subject }
func (s staticClaims) TokenID() string     { return "" }
func (s staticClaims) Expires() time.Time  { return time.Now().Add(time.Hour) }
func (s staticClaims) IssuedAt() time.Time { return time.Now() }

type fakeValidator struct {
	accepted string
	subject  string
}

func (f fakeValidator) VerifyAccessToken(tokenString string) (jwtware.AuthClaims, error) {
	if tokenString != f.accepted {
		return nil, errors.New("token is malformed")
	}
	return staticClaims{subject: f.subject}, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: fakeValidator{accepted: "good-token", subject: "alice"},
	}))
	app.Get("/protected", func(c *fiber.Ctx) error {
		claims, ok := c.Locals("user").(jwtware.AuthClaims)
		require.True(t, ok)
		return c.JSON(fiber.Map{"subject": claims.Subject()})
	})

	return app
}

func requestWithHeader(t *testing.T, app *fiber.App, header string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest("GET", "/protected", nil)
	if header != "" {
		req.Header.Set(fiber.HeaderAuthorization, header)
	}

	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	body := map[string]string{}
	require.NoError(t, json.Unmarshal(raw, &body))

	return res.StatusCode, body
}

func TestMiddlewareAuthorizationHeader(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "Missing header",
			header:      "",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Authorization header missing",
		},
		{
			name:        "Wrong scheme",
			header:      "Token abc",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Invalid authorization header",
		},
		{
			name:        "Scheme without token",
			header:      "Bearer",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Invalid authorization header",
		},
		{
			name:        "Rejected token",
			header:      "Bearer bad-token",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Invalid or expired token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := requestWithHeader(t, app, tt.header)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, body["message"])
		})
	}
}

func TestMiddlewarePassesValidTokens(t *testing.T) {
	app := newTestApp(t)

	status, body := requestWithHeader(t, app, "Bearer good-token")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alice", body["subject"])
}

func TestMiddlewareFilterSkipsAuth(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: fakeValidator{accepted: "good-token"},
		Filter: func(c *fiber.Ctx) bool {
			return c.Path() == "/open"
		},
	}))
	app.Get("/open", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Unfiltered paths still require a token.
	status, body := requestWithHeader(t, app, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Authorization header missing", body["message"])

	req := httptest.NewRequest("GET", "/open", nil)
	res, err := app.Test(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
}
