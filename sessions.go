package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// Sessions orchestrates the full session lifecycle over an IdentityStore,
// a TokenService, and a RevocationLedger. It owns no credential or token
// state itself; every decision is recomputed from those three dependencies.
type Sessions struct {
	store       IdentityStore
	tokens      TokenService
	ledger      RevocationLedger
	activity    ActivitySink
	logger      Logger
	callTimeout time.Duration
}

// SessionOption configures a Sessions orchestrator.
type SessionOption func(*Sessions)

// WithActivitySink attaches an audit sink. Sink failures are logged, never
// surfaced: auditing must not break authentication.
func WithActivitySink(sink ActivitySink) SessionOption {
	return func(s *Sessions) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithCallTimeout bounds each outbound store and ledger call.
func WithCallTimeout(d time.Duration) SessionOption {
	return func(s *Sessions) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// NewSessions will create a new session orchestrator.
func NewSessions(store IdentityStore, tokens TokenService, ledger RevocationLedger, opts ...SessionOption) *Sessions {
	s := &Sessions{
		store:       store,
		tokens:      tokens,
		ledger:      ledger,
		activity:    noopActivitySink{},
		logger:      defLogger{},
		callTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

func (s *Sessions) WithLogger(l Logger) *Sessions {
	if l != nil {
		s.logger = l
	}
	return s
}

// Register creates the identity and immediately establishes a session for
// it. Identity creation and session establishment are not atomic: if the
// identity was created but minting failed, the caller gets
// ErrSessionNotEstablished and the user already exists, so the recovery
// path is a plain login.
func (s *Sessions) Register(ctx context.Context, username, email, password string) (*SessionTokens, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()

	identity, err := s.store.CreateIdentity(cctx, username, email, password)
	if err != nil {
		return nil, err
	}

	pair, err := s.issuePair(identity)
	if err != nil {
		s.logger.Error("register: identity created but session not established: %s", err)
		s.record(WithIdentityContext(ctx, identity), ActivityEvent{
			EventType: ActivityEventRegisterPartial,
			Subject:   username,
		})
		return nil, ErrSessionNotEstablished
	}

	s.record(WithIdentityContext(ctx, identity), ActivityEvent{
		EventType: ActivityEventRegisterSuccess,
		Subject:   username,
	})

	return pair, nil
}

// Login verifies credentials and mints a fresh token pair.
func (s *Sessions) Login(ctx context.Context, username, password string) (*SessionTokens, error) {
	cctx, cancel := s.bound(ctx)
	defer cancel()

	identity, err := s.store.VerifyIdentity(cctx, username, password)
	if err != nil {
		if IsAuthError(err) {
			s.record(ctx, ActivityEvent{
				EventType: ActivityEventLoginFailure,
				Subject:   username,
			})
		}
		return nil, err
	}

	pair, err := s.issuePair(identity)
	if err != nil {
		return nil, err
	}

	s.record(WithIdentityContext(ctx, identity), ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Subject:   identity.Username(),
	})

	return pair, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is returned to circulation unchanged; it stays
// valid until it expires or is revoked.
func (s *Sessions) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	cctx, cancel := s.bound(ctx)
	defer cancel()

	// Fails closed: an unreadable ledger denies the refresh rather than
	// honoring a token that might be revoked.
	revoked, err := s.ledger.IsRevoked(cctx, claims.TokenID())
	if err != nil {
		s.logger.Error("refresh: revocation check failed: %s", err)
		return "", errors.Wrap(err, ErrLedgerUnavailable.Category, ErrLedgerUnavailable.Message).
			WithTextCode(ErrLedgerUnavailable.TextCode)
	}

	if revoked {
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventRefreshDenied,
			Subject:   claims.Subject(),
			TokenID:   claims.TokenID(),
		})
		return "", ErrTokenRevoked
	}

	access, err := s.tokens.IssueAccessToken(claimsIdentity{claims})
	if err != nil {
		return "", err
	}

	s.record(WithIdentityContext(ctx, claimsIdentity{claims}), ActivityEvent{
		EventType: ActivityEventRefreshSuccess,
		Subject:   claims.Subject(),
		TokenID:   claims.TokenID(),
	})

	return access, nil
}

// Logout revokes the presented refresh token. Revocation is idempotent, so
// logging out twice with the same token succeeds both times.
func (s *Sessions) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return err
	}

	cctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.ledger.Revoke(cctx, claims.TokenID(), claims.Subject()); err != nil {
		s.logger.Error("logout: revocation write failed: %s", err)
		return errors.Wrap(err, ErrLedgerUnavailable.Category, ErrLedgerUnavailable.Message).
			WithTextCode(ErrLedgerUnavailable.TextCode)
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventLogoutSuccess,
		Subject:   claims.Subject(),
		TokenID:   claims.TokenID(),
	})

	return nil
}

// Unregister removes an identity. The caller must present a live refresh
// token for the same subject; it is verified and revoked before the
// identity is deleted, so no refresh token survives a deleted account. A
// revocation failure aborts the deletion.
func (s *Sessions) Unregister(ctx context.Context, username, password, refreshToken string) error {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return err
	}

	if claims.Subject() != username {
		return errors.New("Invalid or expired token", errors.CategoryAuth).
			WithTextCode(TextCodeSubjectMismatch)
	}

	rctx, rcancel := s.bound(ctx)
	if err := s.ledger.Revoke(rctx, claims.TokenID(), claims.Subject()); err != nil {
		rcancel()
		s.logger.Error("unregister: revocation write failed: %s", err)
		return errors.Wrap(err, ErrLedgerUnavailable.Category, ErrLedgerUnavailable.Message).
			WithTextCode(ErrLedgerUnavailable.TextCode)
	}
	rcancel()

	cctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.store.DeleteIdentity(cctx, username, password); err != nil {
		return err
	}

	s.record(ctx, ActivityEvent{
		EventType: ActivityEventUnregisterSuccess,
		Subject:   username,
	})

	return nil
}

func (s *Sessions) issuePair(identity Identity) (*SessionTokens, error) {
	access, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, err
	}

	refresh, _, err := s.tokens.IssueRefreshToken(identity)
	if err != nil {
		return nil, err
	}

	return &SessionTokens{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Sessions) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *Sessions) record(ctx context.Context, event ActivityEvent) {
	event.OccurredAt = time.Now()
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink rejected %s event: %s", event.EventType, err)
	}
}

// claimsIdentity lets the token service mint a new access token from the
// claims of a verified refresh token without a store round trip.
type claimsIdentity struct {
	claims AuthClaims
}

func (c claimsIdentity) ID() string       { return c.claims.UserID() }
func (c claimsIdentity) Username() string { return c.claims.Subject() }
func (c claimsIdentity) Email() string    { return "" }
