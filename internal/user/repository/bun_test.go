package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"truledgr/backend/internal/db"
	"truledgr/backend/internal/user/domain"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	bdb, err := db.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	require.NoError(t, db.EnsureSchema(ctx, bdb))
	return bdb
}

func newUser(username string, admin bool) *domain.User {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:           db.NewID(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: "$2a$04$hash",
		IsActive:     true,
		IsAdmin:      admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestBunRepository_CreateAndGet(t *testing.T) {
	repo := NewBunRepository(setupDB(t))
	ctx := context.Background()
	u := newUser("alice", false)
	require.NoError(t, repo.Create(ctx, u))

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "alice", byID.Username)
	assert.True(t, byID.IsActive)
	assert.False(t, byID.IsAdmin)
	assert.True(t, byID.CreatedAt.Equal(u.CreatedAt))

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	missing, err := repo.GetByUsername(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBunRepository_CreateDuplicate(t *testing.T) {
	repo := NewBunRepository(setupDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newUser("alice", false)))

	err := repo.Create(ctx, newUser("alice", false))
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestBunRepository_UpdateAndListAdmins(t *testing.T) {
	repo := NewBunRepository(setupDB(t))
	ctx := context.Background()
	alice, bob := newUser("alice", false), newUser("bob", true)
	require.NoError(t, repo.Create(ctx, alice))
	require.NoError(t, repo.Create(ctx, bob))

	admins, err := repo.ListAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.Equal(t, "bob", admins[0].Username)

	alice.IsAdmin = true
	alice.IsActive = false
	require.NoError(t, repo.Update(ctx, alice))

	got, err := repo.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
	assert.False(t, got.IsActive)

	admins, err = repo.ListAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)
}
