package rest

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/pantry-auth"
	"github.com/goliatone/pantry-auth/middleware/jwtware"
)

// SessionService is the slice of the session orchestrator the HTTP layer
// needs. Narrowed to an interface so controllers can be tested against a
// recording fake.
type SessionService interface {
	Register(ctx context.Context, username, email, password string) (*auth.SessionTokens, error)
	Login(ctx context.Context, username, password string) (*auth.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	Unregister(ctx context.Context, username, password, refreshToken string) error
}

// AccessVerifier checks the access token presented on logout.
type AccessVerifier interface {
	VerifyAccessToken(tokenString string) (auth.AuthClaims, error)
}

type SessionControllerRoutes struct {
	Register   string
	Login      string
	Logout     string
	Unregister string
	Refresh    string
}

type SessionController struct {
	Routes     *SessionControllerRoutes
	sessions   SessionService
	verifier   AccessVerifier
	logger     auth.Logger
	authScheme string
}

// NewSessionController will create a new SessionController
func NewSessionController(sessions SessionService, verifier AccessVerifier) *SessionController {
	return &SessionController{
		Routes: &SessionControllerRoutes{
			Register:   "/register",
			Login:      "/login",
			Logout:     "/logout",
			Unregister: "/unregister",
			Refresh:    "/refresh_token",
		},
		sessions:   sessions,
		verifier:   verifier,
		logger:     auth.DefaultLogger(),
		authScheme: "Bearer",
	}
}

func (s *SessionController) WithLogger(l auth.Logger) *SessionController {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithAuthScheme sets the Authorization scheme expected on logout.
func (s *SessionController) WithAuthScheme(scheme string) *SessionController {
	if scheme != "" {
		s.authScheme = scheme
	}
	return s
}

// RegisterRoutes mounts the session endpoints on the given router.
func (s *SessionController) RegisterRoutes(app fiber.Router) {
	app.Post(s.Routes.Register, s.Register)
	app.Post(s.Routes.Login, s.Login)
	app.Post(s.Routes.Logout, s.Logout)
	app.Post(s.Routes.Unregister, s.Unregister)
	app.Post(s.Routes.Refresh, s.Refresh)
}

// Register handles POST /register
func (s *SessionController) Register(c *fiber.Ctx) error {
	payload := RegisterRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if missing := payload.MissingFields(); len(missing) > 0 {
		return badRequest(c, "Missing fields: "+strings.Join(missing, ", "))
	}

	if err := payload.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	pair, err := s.sessions.Register(c.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		if isSessionNotEstablished(err) {
			// The identity exists; the client recovers with a plain login.
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"message": "User registered, but a session could not be established",
			})
		}
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "User registered successfully",
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Login handles POST /login
func (s *SessionController) Login(c *fiber.Ctx) error {
	payload := LoginRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if missing := payload.MissingFields(); len(missing) > 0 {
		return badRequest(c, "Missing fields: "+strings.Join(missing, ", "))
	}

	pair, err := s.sessions.Login(c.Context(), payload.Username, payload.Password)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":       "Login successful",
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout handles POST /logout. The caller must present its access token in
// the Authorization header and the refresh token to revoke in the body;
// any failure collapses into the one invalid-token message.
func (s *SessionController) Logout(c *fiber.Ctx) error {
	raw, err := jwtware.ParseAuthHeader(c.Get(fiber.HeaderAuthorization), s.authScheme)
	if err != nil {
		return badRequest(c, "Invalid or expired token")
	}

	if _, err := s.verifier.VerifyAccessToken(raw); err != nil {
		return badRequest(c, "Invalid or expired token")
	}

	payload := LogoutRequest{}
	if err := c.BodyParser(&payload); err != nil || payload.RefreshToken == "" {
		return badRequest(c, "Invalid or expired token")
	}

	if err := s.sessions.Logout(c.Context(), payload.RefreshToken); err != nil {
		if auth.IsAuthError(err) {
			return badRequest(c, "Invalid or expired token")
		}
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logout successful",
	})
}

// Unregister handles POST /unregister
func (s *SessionController) Unregister(c *fiber.Ctx) error {
	payload := UnregisterRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if missing := payload.MissingFields(); len(missing) > 0 {
		return badRequest(c, "Missing fields: "+strings.Join(missing, ", "))
	}

	if err := s.sessions.Unregister(c.Context(), payload.Username, payload.Password, payload.RefreshToken); err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}

// Refresh handles POST /refresh_token
func (s *SessionController) Refresh(c *fiber.Ctx) error {
	payload := RefreshRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if missing := payload.MissingFields(); len(missing) > 0 {
		return badRequest(c, "Missing fields: "+strings.Join(missing, ", "))
	}

	access, err := s.sessions.Refresh(c.Context(), payload.RefreshToken)
	if err != nil {
		if auth.IsAuthError(err) {
			return badRequest(c, "Invalid or expired token")
		}
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"access_token": access,
	})
}

// respondError maps the error taxonomy onto the wire contract. Auth errors
// surface as 400 at session endpoints; only the protected proxies use 401.
func (s *SessionController) respondError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		s.logger.Error("unhandled error: %s", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	status := fiber.StatusInternalServerError
	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryBadInput, errors.CategoryValidation, errors.CategoryConflict:
		status = fiber.StatusBadRequest
	case errors.CategoryNotFound:
		status = fiber.StatusNotFound
	case errors.CategoryOperation:
		status = fiber.StatusBadGateway
	}

	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed: %s", richErr)
	}

	return c.Status(status).JSON(fiber.Map{
		"message": richErr.Message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
	})
}

func isSessionNotEstablished(err error) bool {
	var richErr *errors.Error
	return errors.As(err, &richErr) && richErr.TextCode == auth.TextCodeSessionNotCreated
}
