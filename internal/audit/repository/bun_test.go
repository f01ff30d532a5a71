package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truledgr/backend/internal/audit/domain"
	"truledgr/backend/internal/db"
)

func TestBunRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	bdb, err := db.NewDB(ctx, ":memory:")
	require.NoError(t, err)
	defer bdb.Close()
	require.NoError(t, db.EnsureSchema(ctx, bdb))
	repo := NewBunRepository(bdb)

	base := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	entries := []*domain.AuditLog{
		{ID: db.NewID(), ActorUserID: "u1", Action: domain.ActionLoginSuccess, Resource: domain.ResourceSession, IP: "1.1.1.1", CreatedAt: base},
		{ID: db.NewID(), ActorUserID: "admin", SubjectUserID: "u1", Action: domain.ActionImpersonationStart, Resource: domain.ResourceImpersonationSession, ResourceID: "imp", CreatedAt: base.Add(time.Minute)},
		{ID: db.NewID(), ActorUserID: "u2", Action: domain.ActionLogout, Resource: domain.ResourceSession, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
	}

	all, err := repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.ActionLogout, all[0].Action)
	assert.Equal(t, "{}", all[0].Metadata)

	forU1, err := repo.List(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, forU1, 2)
	assert.Equal(t, domain.ActionImpersonationStart, forU1[0].Action)
	assert.Equal(t, "imp", forU1[0].ResourceID)
	assert.Equal(t, domain.ActionLoginSuccess, forU1[1].Action)

	page, err := repo.List(ctx, "", 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.ActionImpersonationStart, page[0].Action)
}
