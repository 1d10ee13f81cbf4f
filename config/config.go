// Package config defines the application configuration consumed by the
// authd, usersd, and gatewayd entry points. Durations are stored as
// expressions ("15m", "168h") and parsed by the getters.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

type AppConfig struct {
	Name        string      `json:"name" yaml:"name"`
	Env         string      `json:"env" yaml:"env"`
	Server      Server      `json:"server" yaml:"server"`
	Auth        Auth        `json:"auth" yaml:"auth"`
	Persistence Persistence `json:"persistence" yaml:"persistence"`
	Upstreams   Upstreams   `json:"upstreams" yaml:"upstreams"`
}

func (a AppConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Server),
		validation.Field(&a.Auth),
		validation.Field(&a.Persistence),
	)
}

func (a AppConfig) GetName() string {
	if a.Name == "" {
		return "pantry-auth"
	}
	return a.Name
}

func (a AppConfig) GetEnv() string {
	if a.Env == "" {
		return "development"
	}
	return a.Env
}

func (a AppConfig) GetServer() Server           { return a.Server }
func (a AppConfig) GetAuth() Auth               { return a.Auth }
func (a AppConfig) GetPersistence() Persistence { return a.Persistence }
func (a AppConfig) GetUpstreams() Upstreams     { return a.Upstreams }

type Server struct {
	Addr string `json:"addr" yaml:"addr"`
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Addr, validation.Required),
	)
}

func (s Server) GetAddr() string { return s.Addr }

type Auth struct {
	SigningKey            string   `json:"signing_key" yaml:"signing_key"`
	PreviousSigningKeys   []string `json:"previous_signing_keys" yaml:"previous_signing_keys"`
	AccessTTLExpression   string   `json:"access_ttl" yaml:"access_ttl"`
	RefreshTTLExpression  string   `json:"refresh_ttl" yaml:"refresh_ttl"`
	LeewayExpression      string   `json:"leeway" yaml:"leeway"`
	Issuer                string   `json:"issuer" yaml:"issuer"`
	Audience              []string `json:"audience" yaml:"audience"`
	ContextKey            string   `json:"context_key" yaml:"context_key"`
	AuthScheme            string   `json:"auth_scheme" yaml:"auth_scheme"`
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(32, 0)),
	)
}

func (a Auth) GetSigningKey() string { return a.SigningKey }

func (a Auth) GetPreviousSigningKeys() []string { return a.PreviousSigningKeys }

func (a Auth) GetAccessTokenTTL() time.Duration {
	return parseDurationExpression(a.AccessTTLExpression, 15*time.Minute)
}

func (a Auth) GetRefreshTokenTTL() time.Duration {
	return parseDurationExpression(a.RefreshTTLExpression, 7*24*time.Hour)
}

func (a Auth) GetClockSkewLeeway() time.Duration {
	return parseDurationExpression(a.LeewayExpression, 0)
}

func (a Auth) GetIssuer() string { return a.Issuer }

func (a Auth) GetAudience() []string { return a.Audience }

func (a Auth) GetContextKey() string {
	if a.ContextKey == "" {
		return "user"
	}
	return a.ContextKey
}

func (a Auth) GetAuthScheme() string {
	if a.AuthScheme == "" {
		return "Bearer"
	}
	return a.AuthScheme
}

type Persistence struct {
	Driver                string `json:"driver" yaml:"driver"`
	DSN                   string `json:"dsn" yaml:"dsn"`
	Debug                 bool   `json:"debug" yaml:"debug"`
	PingTimeoutExpression string `json:"ping_timeout" yaml:"ping_timeout"`
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.DSN, validation.Required),
	)
}

func (p Persistence) GetDriver() string {
	if p.Driver == "" {
		return "sqlite"
	}
	return p.Driver
}

func (p Persistence) GetDSN() string { return p.DSN }

func (p Persistence) GetDebug() bool { return p.Debug }

func (p Persistence) GetPingTimeout() time.Duration {
	return parseDurationExpression(p.PingTimeoutExpression, 5*time.Second)
}

type Upstreams struct {
	AuthService    string `json:"auth_service" yaml:"auth_service"`
	UserService    string `json:"user_service" yaml:"user_service"`
	ProductService string `json:"product_service" yaml:"product_service"`
}

func (u Upstreams) GetAuthService() string    { return u.AuthService }
func (u Upstreams) GetUserService() string    { return u.UserService }
func (u Upstreams) GetProductService() string { return u.ProductService }

func parseDurationExpression(expr string, def time.Duration) time.Duration {
	if expr == "" {
		return def
	}
	dur, err := time.ParseDuration(expr)
	if err != nil {
		panic(fmt.Sprintf("unable to parse time: expr %s", expr))
	}
	return dur
}
