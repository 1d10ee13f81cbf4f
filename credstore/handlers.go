// Package credstore exposes the credential store over HTTP: fiber handlers
// for the service that owns the identity records, and a client that lets
// the session service consume them through the same IdentityStore interface
// it would use in-process. Password hashes never appear on the wire in
// either direction; the raw password crosses once, inbound, over the
// internal network.
package credstore

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/pantry-auth"
)

// CreateUserRequest is the payload for POST /users/
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r CreateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// CredentialsRequest carries username and password for authenticate and
// delete operations.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r CredentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// identityEnvelope is the wire shape for a verified or created identity.
type identityEnvelope struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UserControllerRoutes struct {
	Users        string
	Authenticate string
}

// UserController serves the credential store endpoints.
type UserController struct {
	Routes *UserControllerRoutes
	store  auth.IdentityStore
	logger auth.Logger
}

// NewUserController will create a new UserController
func NewUserController(store auth.IdentityStore) *UserController {
	return &UserController{
		Routes: &UserControllerRoutes{
			Users:        "/users/",
			Authenticate: "/authenticate/",
		},
		store:  store,
		logger: auth.DefaultLogger(),
	}
}

func (u *UserController) WithLogger(l auth.Logger) *UserController {
	if l != nil {
		u.logger = l
	}
	return u
}

// RegisterRoutes mounts the credential store endpoints on the given router.
func (u *UserController) RegisterRoutes(app fiber.Router) {
	app.Post(u.Routes.Users, u.CreateUser)
	app.Post(u.Routes.Authenticate, u.Authenticate)
	app.Delete(u.Routes.Users, u.DeleteUser)
}

// CreateUser handles POST /users/
func (u *UserController) CreateUser(c *fiber.Ctx) error {
	payload := CreateUserRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if missing := missingCreateFields(payload); len(missing) > 0 {
		return badRequest(c, "Missing fields: "+strings.Join(missing, ", "))
	}

	if err := payload.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	identity, err := u.store.CreateIdentity(c.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		return u.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User created",
		"user": identityEnvelope{
			ID:       identity.ID(),
			Username: identity.Username(),
			Email:    identity.Email(),
		},
	})
}

// Authenticate handles POST /authenticate/
func (u *UserController) Authenticate(c *fiber.Ctx) error {
	payload := CredentialsRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if err := payload.Validate(); err != nil {
		return badRequest(c, "Invalid credentials")
	}

	identity, err := u.store.VerifyIdentity(c.Context(), payload.Username, payload.Password)
	if err != nil {
		return u.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(identityEnvelope{
		ID:       identity.ID(),
		Username: identity.Username(),
		Email:    identity.Email(),
	})
}

// DeleteUser handles DELETE /users/
func (u *UserController) DeleteUser(c *fiber.Ctx) error {
	payload := CredentialsRequest{}
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid request payload")
	}

	if err := payload.Validate(); err != nil {
		return badRequest(c, "Invalid credentials")
	}

	if err := u.store.DeleteIdentity(c.Context(), payload.Username, payload.Password); err != nil {
		return u.respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "User deleted",
	})
}

func (u *UserController) respondError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		u.logger.Error("unhandled error: %s", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}

	status := fiber.StatusInternalServerError
	switch richErr.Category {
	case errors.CategoryAuth:
		status = fiber.StatusUnauthorized
	case errors.CategoryBadInput, errors.CategoryValidation:
		status = fiber.StatusBadRequest
	case errors.CategoryConflict:
		status = fiber.StatusConflict
	case errors.CategoryNotFound:
		status = fiber.StatusNotFound
	}

	if status >= fiber.StatusInternalServerError {
		u.logger.Error("request failed: %s", richErr)
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

func missingCreateFields(r CreateUserRequest) []string {
	var missing []string
	if r.Username == "" {
		missing = append(missing, "username")
	}
	if r.Email == "" {
		missing = append(missing, "email")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}
