package gateway_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	auth "github.com/goliatone/pantry-auth"
	"github.com/goliatone/pantry-auth/config"
	"github.com/goliatone/pantry-auth/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gwIdentity struct{}

func (gwIdentity) ID() string       { return "id-alice" }
func (gwIdentity) Username() string { return "alice" }
func (gwIdentity) Email() string    { return "a@x.com" }

func newUpstream(t *testing.T, label string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"served_by": label,
			"path":      r.URL.Path,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGatewayApp(t *testing.T) (*fiber.App, auth.TokenService) {
	t.Helper()

	authUpstream := newUpstream(t, "auth")
	productUpstream := newUpstream(t, "product")

	tokens := auth.NewTokenService(config.Auth{
		SigningKey:           "gateway-test-signing-key-long-enough",
		AccessTTLExpression:  "15m",
		RefreshTTLExpression: "168h",
	}, nil)

	gw := gateway.New(gateway.Upstreams{
		AuthService:    authUpstream.URL,
		ProductService: productUpstream.URL,
	}, gateway.TokenValidatorFrom(tokens))

	app := fiber.New()
	gw.RegisterRoutes(app)

	return app, tokens
}

func doRequest(t *testing.T, app *fiber.App, method, path, authHeader string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set(fiber.HeaderAuthorization, authHeader)
	}

	res, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	body := map[string]string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	return res.StatusCode, body
}

func TestGatewayForwardsSessionEndpoints(t *testing.T) {
	app, _ := newGatewayApp(t)

	for _, path := range []string{"/register", "/login", "/logout", "/unregister", "/refresh_token"} {
		t.Run(path, func(t *testing.T) {
			status, body := doRequest(t, app, "POST", path, "")
			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, "auth", body["served_by"])
			assert.Equal(t, path, body["path"])
		})
	}
}

func TestGatewayProtectsProductEndpoints(t *testing.T) {
	app, tokens := newGatewayApp(t)

	access, err := tokens.IssueAccessToken(gwIdentity{})
	require.NoError(t, err)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "No header",
			header:      "",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Authorization header missing",
		},
		{
			name:        "Malformed header",
			header:      "Token abc",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Invalid authorization header",
		},
		{
			name:        "Garbage token",
			header:      "Bearer garbage",
			wantStatus:  fiber.StatusUnauthorized,
			wantMessage: "Invalid or expired token",
		},
		{
			name:       "Valid token",
			header:     "Bearer " + access,
			wantStatus: fiber.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRequest(t, app, "GET", "/recipes/42", tt.header)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body["message"])
				return
			}

			assert.Equal(t, "product", body["served_by"])
			assert.Equal(t, "/recipes/42", body["path"])
		})
	}
}

func TestGatewayStampsVerifiedSubject(t *testing.T) {
	authUpstream := newUpstream(t, "auth")

	productUpstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"subject": r.Header.Get("X-Auth-Subject"),
			"user_id": r.Header.Get("X-Auth-User-Id"),
		})
	}))
	t.Cleanup(productUpstream.Close)

	tokens := auth.NewTokenService(config.Auth{
		SigningKey:           "gateway-test-signing-key-long-enough",
		AccessTTLExpression:  "15m",
		RefreshTTLExpression: "168h",
	}, nil)

	gw := gateway.New(gateway.Upstreams{
		AuthService:    authUpstream.URL,
		ProductService: productUpstream.URL,
	}, gateway.TokenValidatorFrom(tokens))

	app := fiber.New()
	gw.RegisterRoutes(app)

	access, err := tokens.IssueAccessToken(gwIdentity{})
	require.NoError(t, err)

	status, body := doRequest(t, app, "GET", "/preferences", "Bearer "+access)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alice", body["subject"])
	assert.Equal(t, "id-alice", body["user_id"])
}

func TestGatewayCustomAuthScheme(t *testing.T) {
	authUpstream := newUpstream(t, "auth")
	productUpstream := newUpstream(t, "product")

	tokens := auth.NewTokenService(config.Auth{
		SigningKey:           "gateway-test-signing-key-long-enough",
		AccessTTLExpression:  "15m",
		RefreshTTLExpression: "168h",
	}, nil)

	gw := gateway.New(gateway.Upstreams{
		AuthService:    authUpstream.URL,
		ProductService: productUpstream.URL,
	}, gateway.TokenValidatorFrom(tokens)).
		WithAuthScheme("Token")

	app := fiber.New()
	gw.RegisterRoutes(app)

	access, err := tokens.IssueAccessToken(gwIdentity{})
	require.NoError(t, err)

	status, _ := doRequest(t, app, "GET", "/recipes/1", "Bearer "+access)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body := doRequest(t, app, "GET", "/recipes/1", "Token "+access)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "product", body["served_by"])
}

func TestGatewayProtectsSearchAndPreferences(t *testing.T) {
	app, tokens := newGatewayApp(t)

	access, err := tokens.IssueAccessToken(gwIdentity{})
	require.NoError(t, err)

	for _, path := range []string{"/ingredients/7", "/search/recipes", "/search/ingredients", "/preferences"} {
		t.Run(path, func(t *testing.T) {
			status, _ := doRequest(t, app, "GET", path, "")
			assert.Equal(t, fiber.StatusUnauthorized, status)

			status, body := doRequest(t, app, "GET", path, "Bearer "+access)
			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, "product", body["served_by"])
		})
	}
}
