package rest

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// RegisterRequest is the payload for POST /register
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	)
}

// MissingFields lists required fields absent from the payload.
func (r RegisterRequest) MissingFields() []string {
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

// LoginRequest is the payload for POST /login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// MissingFields lists required fields absent from the payload.
func (r LoginRequest) MissingFields() []string {
	var missing []string
	if r.Username == "" {
		missing = append(missing, "username")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	return missing
}

// LogoutRequest is the payload for POST /logout
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate will run validation rules
func (r LogoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// RefreshRequest is the payload for POST /refresh_token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// MissingFields lists required fields absent from the payload.
func (r RefreshRequest) MissingFields() []string {
	var missing []string
	if r.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	return missing
}

// UnregisterRequest is the payload for POST /unregister
type UnregisterRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

// Validate will run validation rules
func (r UnregisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// MissingFields lists required fields absent from the payload.
func (r UnregisterRequest) MissingFields() []string {
	var missing []string
	if r.Username == "" {
		missing = append(missing, "username")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	if r.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	return missing
}
