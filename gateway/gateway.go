// Package gateway is the public edge of the system. It forwards the session
// lifecycle endpoints to the session service untouched and fronts the
// product endpoints with bearer-token verification, so downstream services
// never see an unauthenticated request.
package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	auth "github.com/goliatone/pantry-auth"
	"github.com/goliatone/pantry-auth/middleware/jwtware"
)

// TokenValidatorFrom adapts the auth token service to the middleware's
// validator interface.
func TokenValidatorFrom(tokens auth.TokenService) jwtware.TokenValidator {
	return validatorAdapter{tokens: tokens}
}

type validatorAdapter struct {
	tokens auth.TokenService
}

func (v validatorAdapter) VerifyAccessToken(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Upstreams names the services the gateway fronts.
type Upstreams struct {
	AuthService    string
	ProductService string
}

type Gateway struct {
	upstreams  Upstreams
	verifier   jwtware.TokenValidator
	logger     auth.Logger
	contextKey string
	authScheme string
}

// New will create a new Gateway.
func New(upstreams Upstreams, verifier jwtware.TokenValidator) *Gateway {
	return &Gateway{
		upstreams: Upstreams{
			AuthService:    strings.TrimRight(upstreams.AuthService, "/"),
			ProductService: strings.TrimRight(upstreams.ProductService, "/"),
		},
		verifier:   verifier,
		logger:     auth.DefaultLogger(),
		contextKey: "user",
		authScheme: "Bearer",
	}
}

func (g *Gateway) WithLogger(l auth.Logger) *Gateway {
	if l != nil {
		g.logger = l
	}
	return g
}

// WithContextKey sets the Locals key the middleware stores claims under.
func (g *Gateway) WithContextKey(key string) *Gateway {
	if key != "" {
		g.contextKey = key
	}
	return g
}

// WithAuthScheme sets the Authorization scheme expected on bearer tokens.
func (g *Gateway) WithAuthScheme(scheme string) *Gateway {
	if scheme != "" {
		g.authScheme = scheme
	}
	return g
}

// RegisterRoutes mounts the forwarding and protected proxy routes.
func (g *Gateway) RegisterRoutes(app fiber.Router) {
	// Session lifecycle passes through untouched; the session service owns
	// every token decision.
	app.Post("/register", g.forwardAuth)
	app.Post("/login", g.forwardAuth)
	app.Post("/logout", g.forwardAuth)
	app.Post("/unregister", g.forwardAuth)
	app.Post("/refresh_token", g.forwardAuth)

	protected := app.Group("/", jwtware.New(jwtware.Config{
		ContextKey:     g.contextKey,
		AuthScheme:     g.authScheme,
		TokenValidator: g.verifier,
		ValidationListeners: []jwtware.ValidationListener{
			storeClaimsContext,
		},
	}))

	protected.Get("/recipes/:id", g.forwardProduct)
	protected.Get("/ingredients/:id", g.forwardProduct)
	protected.Get("/search/recipes", g.forwardProduct)
	protected.Get("/search/ingredients", g.forwardProduct)
	protected.Get("/preferences", g.forwardProduct)
	protected.Post("/preferences", g.forwardProduct)
}

// storeClaimsContext mirrors validated claims into the request's user
// context so handlers can read them without knowing the Locals key.
func storeClaimsContext(c *fiber.Ctx, claims jwtware.AuthClaims) error {
	if ac, ok := claims.(auth.AuthClaims); ok {
		c.SetUserContext(auth.WithClaimsContext(c.UserContext(), ac))
	}
	return nil
}

func (g *Gateway) forwardAuth(c *fiber.Ctx) error {
	return g.forward(c, g.upstreams.AuthService)
}

// forwardProduct stamps the verified subject onto the proxied request so
// the product service can scope preferences without parsing the token.
func (g *Gateway) forwardProduct(c *fiber.Ctx) error {
	if claims, ok := auth.GetClaims(c.UserContext()); ok {
		c.Request().Header.Set("X-Auth-Subject", claims.Subject())
		c.Request().Header.Set("X-Auth-User-Id", claims.UserID())
	}
	return g.forward(c, g.upstreams.ProductService)
}

func (g *Gateway) forward(c *fiber.Ctx, upstream string) error {
	target := upstream + c.OriginalURL()
	if err := proxy.Do(c, target); err != nil {
		g.logger.Error("proxy to %s failed: %s", target, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"message": "Upstream service unavailable",
		})
	}
	// fasthttp keeps the upstream Server header; strip it so the gateway
	// stays the only name clients see.
	c.Response().Header.Del(fiber.HeaderServer)
	return nil
}
