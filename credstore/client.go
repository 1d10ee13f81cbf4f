package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/pantry-auth"
)

// Client implements auth.IdentityStore over HTTP against a UserController
// deployment. Every call carries a bounded timeout; a store that cannot be
// reached surfaces as ErrStoreUnavailable so callers can distinguish an
// outage from a rejection.
type Client struct {
	baseURL string
	http    *http.Client
	logger  auth.Logger
}

// ClientOption configures a credential store client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient will create a new credential store client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: auth.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

func (c *Client) WithLogger(l auth.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// CreateIdentity calls POST /users/ on the remote store.
func (c *Client) CreateIdentity(ctx context.Context, username, email, password string) (auth.Identity, error) {
	body := CreateUserRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/users/", body)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusCreated:
		env := struct {
			User identityEnvelope `json:"user"`
		}{}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "credential store returned an unreadable identity")
		}
		return remoteIdentity(env.User), nil
	case status == http.StatusConflict:
		return nil, remoteError(raw, auth.ErrDuplicateIdentity)
	case status == http.StatusBadRequest:
		return nil, remoteError(raw, auth.ErrInvalidEmail)
	default:
		return nil, c.unexpected(status, raw)
	}
}

// VerifyIdentity calls POST /authenticate/ on the remote store. Any
// rejection collapses into ErrInvalidCredentials; the remote already
// guarantees not-found and bad-password are indistinguishable.
func (c *Client) VerifyIdentity(ctx context.Context, username, password string) (auth.Identity, error) {
	body := CredentialsRequest{
		Username: username,
		Password: password,
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/authenticate/", body)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		env := identityEnvelope{}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "credential store returned an unreadable identity")
		}
		return remoteIdentity(env), nil
	case http.StatusUnauthorized, http.StatusBadRequest, http.StatusNotFound:
		return nil, auth.ErrInvalidCredentials
	default:
		return nil, c.unexpected(status, raw)
	}
}

// DeleteIdentity calls DELETE /users/ on the remote store.
func (c *Client) DeleteIdentity(ctx context.Context, username, password string) error {
	body := CredentialsRequest{
		Username: username,
		Password: password,
	}

	status, raw, err := c.do(ctx, http.MethodDelete, "/users/", body)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return auth.ErrIdentityNotFound
	case http.StatusUnauthorized, http.StatusBadRequest:
		return auth.ErrInvalidCredentials
	default:
		return c.unexpected(status, raw)
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("credential store call failed: %s %s: %s", method, path, err)
		return 0, nil, errors.Wrap(err, auth.ErrStoreUnavailable.Category, auth.ErrStoreUnavailable.Message).
			WithTextCode(auth.ErrStoreUnavailable.TextCode)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return 0, nil, errors.Wrap(err, auth.ErrStoreUnavailable.Category, auth.ErrStoreUnavailable.Message).
			WithTextCode(auth.ErrStoreUnavailable.TextCode)
	}

	return res.StatusCode, raw, nil
}

func (c *Client) unexpected(status int, raw []byte) error {
	c.logger.Error("credential store unexpected status %d: %s", status, raw)
	return errors.New(fmt.Sprintf("credential store returned status %d", status), errors.CategoryOperation).
		WithTextCode(auth.TextCodeStoreUnavailable)
}

// remoteError surfaces the remote message when one is present, falling back
// to the given sentinel.
func remoteError(raw []byte, sentinel *errors.Error) error {
	env := struct {
		Message string `json:"message"`
	}{}
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return errors.New(env.Message, sentinel.Category).WithTextCode(sentinel.TextCode)
	}
	return sentinel
}

type storeIdentity struct {
	id       string
	username string
	email    string
}

func (s storeIdentity) ID() string       { return s.id }
func (s storeIdentity) Username() string { return s.username }
func (s storeIdentity) Email() string    { return s.email }

func remoteIdentity(env identityEnvelope) storeIdentity {
	return storeIdentity{
		id:       env.ID,
		username: env.Username,
		email:    env.Email,
	}
}

var _ auth.IdentityStore = (*Client)(nil)
