package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Revocations is the bun-backed revocation ledger. Concurrent replicas rely
// on the primary-key constraint for idempotency, not in-process locks.
type Revocations interface {
	RevocationLedger
	RevokeTx(ctx context.Context, tx bun.IDB, jti, subject string) error
	IsRevokedTx(ctx context.Context, tx bun.IDB, jti string) (bool, error)
}

type revocations struct {
	db *bun.DB
}

var _ Revocations = (*revocations)(nil)

func NewRevocationsRepository(db *bun.DB) Revocations {
	return &revocations{db: db}
}

// Revoke is idempotent: re-revoking an already-revoked jti is a no-op
// success via insert-or-ignore on the primary key.
func (r *revocations) Revoke(ctx context.Context, jti, subject string) error {
	return r.RevokeTx(ctx, r.db, jti, subject)
}

func (r *revocations) RevokeTx(ctx context.Context, tx bun.IDB, jti, subject string) error {
	if jti == "" {
		return errors.New("jti must not be empty", errors.CategoryBadInput)
	}

	entry := &RevokedToken{
		JTI:       jti,
		Subject:   subject,
		RevokedAt: time.Now(),
	}

	_, err := tx.NewInsert().
		Model(entry).
		On("CONFLICT (jti) DO NOTHING").
		Exec(ctx)

	if err != nil {
		return errors.Wrap(err, ErrLedgerUnavailable.Category, ErrLedgerUnavailable.Message).
			WithTextCode(ErrLedgerUnavailable.TextCode)
	}

	return nil
}

func (r *revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return r.IsRevokedTx(ctx, r.db, jti)
}

func (r *revocations) IsRevokedTx(ctx context.Context, tx bun.IDB, jti string) (bool, error) {
	exists, err := tx.NewSelect().
		Model((*RevokedToken)(nil)).
		Where("?TableAlias.jti = ?", jti).
		Exists(ctx)

	if err != nil {
		return false, errors.Wrap(err, ErrLedgerUnavailable.Category, ErrLedgerUnavailable.Message).
			WithTextCode(ErrLedgerUnavailable.TextCode)
	}

	return exists, nil
}
