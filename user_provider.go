package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
)

// UserProvider is the in-process credential store: the one component that
// touches password hashes. Both verification outcomes (unknown username,
// wrong password) surface as ErrInvalidCredentials so callers cannot
// enumerate usernames.
type UserProvider struct {
	repo      RepositoryManager
	logger    Logger
	useHashid bool
}

// Equalizes response timing for unknown usernames: we run the same bcrypt
// comparison against this throwaway hash before reporting failure.
const verifyTimingHash = "$2a$14$8vPzaOMKa2T6mCkTwYcMWeJh0bZLLLz0HxUqS2ZN8N29nqQvCFMGm"

type UserProviderOption func(*UserProvider)

// WithDeterministicIDs derives user IDs from the email via hashid instead
// of minting random UUIDs.
func WithDeterministicIDs() UserProviderOption {
	return func(u *UserProvider) {
		u.useHashid = true
	}
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(repo RepositoryManager, opts ...UserProviderOption) *UserProvider {
	p := &UserProvider{
		repo:   repo,
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// CreateIdentity validates, hashes, and persists a new identity. The
// pre-checks give precise duplicate messages; the unique constraints close
// the race two concurrent registrations would otherwise win together.
func (u *UserProvider) CreateIdentity(ctx context.Context, username, email, password string) (Identity, error) {
	if !isEmail(email) {
		return nil, ErrInvalidEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	if _, err := u.repo.Users().GetByUsername(ctx, username); err == nil {
		return nil, errors.New("A user with that username already exists", errors.CategoryConflict).
			WithTextCode(TextCodeDuplicateIdentity)
	} else if !repository.IsRecordNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check username availability")
	}

	if _, err := u.repo.Users().GetByEmail(ctx, email); err == nil {
		return nil, errors.New("A user with that email already exists", errors.CategoryConflict).
			WithTextCode(TextCodeDuplicateIdentity)
	} else if !repository.IsRecordNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check email availability")
	}

	user := &User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if u.useHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		}
	}

	user, err = u.repo.Users().Register(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, ErrDuplicateIdentity.Category, ErrDuplicateIdentity.Message).
			WithTextCode(ErrDuplicateIdentity.TextCode)
	}

	return userIdentity(user), nil
}

// VerifyIdentity will find the user, compare to the password, and return
// the identity.
func (u *UserProvider) VerifyIdentity(ctx context.Context, username, password string) (Identity, error) {
	user, err := u.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			_ = ComparePasswordAndHash(password, verifyTimingHash)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return userIdentity(user), nil
}

// DeleteIdentity re-verifies credentials before the destructive action.
func (u *UserProvider) DeleteIdentity(ctx context.Context, username, password string) error {
	user, err := u.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during unregister")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if err := u.repo.Users().DeleteAccount(ctx, user.ID); err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
	}

	return nil
}

type authIdentity struct {
	id       string
	username string
	email    string
}

func (a authIdentity) ID() string       { return a.id }
func (a authIdentity) Username() string { return a.username }
func (a authIdentity) Email() string    { return a.email }

var _ Identity = authIdentity{}

func userIdentity(user *User) authIdentity {
	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
	}
}

var _ IdentityStore = (*UserProvider)(nil)
