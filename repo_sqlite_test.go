package auth_test

import (
	"context"
	"database/sql"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	auth "github.com/goliatone/pantry-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// One connection keeps every statement on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*auth.User)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*auth.RevokedToken)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	return db
}

func TestRevocationsLedger(t *testing.T) {
	db := newTestDB(t)
	ledger := auth.NewRevocationsRepository(db)
	ctx := context.Background()

	jti := uuid.NewString()

	revoked, err := ledger.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, ledger.Revoke(ctx, jti, "alice"))

	revoked, err = ledger.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)

	// Re-revoking the same jti is a no-op success.
	require.NoError(t, ledger.Revoke(ctx, jti, "alice"))

	revoked, err = ledger.IsRevoked(ctx, jti)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevocationsLedgerRejectsEmptyJTI(t *testing.T) {
	db := newTestDB(t)
	ledger := auth.NewRevocationsRepository(db)

	assert.Error(t, ledger.Revoke(context.Background(), "", "alice"))
}

func TestUsersRepositoryRegisterAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := auth.NewUsersRepository(db)
	ctx := context.Background()

	created, err := repo.Register(ctx, &auth.User{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.IsActive)

	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	// Username lookups are exact, case-sensitive matches.
	_, err = repo.GetByUsername(ctx, "Alice")
	assert.True(t, repository.IsRecordNotFound(err))

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestUsersRepositoryUniqueUsername(t *testing.T) {
	db := newTestDB(t)
	repo := auth.NewUsersRepository(db)
	ctx := context.Background()

	_, err := repo.Register(ctx, &auth.User{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	_, err = repo.Register(ctx, &auth.User{
		Username:     "alice",
		Email:        "different@x.com",
		PasswordHash: "hash",
	})
	require.Error(t, err)

	count, err := db.NewSelect().Model((*auth.User)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUsersRepositoryDeleteAccount(t *testing.T) {
	db := newTestDB(t)
	repo := auth.NewUsersRepository(db)
	ctx := context.Background()

	created, err := repo.Register(ctx, &auth.User{
		Username:     "alice",
		Email:        "a@x.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteAccount(ctx, created.ID))

	_, err = repo.GetByUsername(ctx, "alice")
	assert.True(t, repository.IsRecordNotFound(err))

	err = repo.DeleteAccount(ctx, created.ID)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestRepositoryManager(t *testing.T) {
	db := newTestDB(t)
	mgr := auth.NewRepositoryManager(db)

	require.NoError(t, mgr.Validate())
	assert.NotNil(t, mgr.Users())
	assert.NotNil(t, mgr.Revocations())

	err := mgr.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := mgr.Users().RegisterTx(ctx, tx, &auth.User{
			Username:     "alice",
			Email:        "a@x.com",
			PasswordHash: "hash",
		})
		return err
	})
	require.NoError(t, err)

	found, err := mgr.Users().GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
}
