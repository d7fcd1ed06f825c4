package database

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/auth"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryInsertAndGetByUsername(t *testing.T) {
	client := newTestClient(t)
	repo := NewUserRepository(client)
	ctx := context.Background()

	hash, err := auth.HashPassword("swordfish")
	require.NoError(t, err)

	u := models.User{ID: "user-1", Username: "alice", PasswordHash: hash, CreatedAt: time.Now()}
	require.NoError(t, repo.InsertUser(ctx, u))

	got, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)

	ok, err := auth.VerifyPassword("swordfish", got.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserRepositoryGetByUsernameMissingReturnsErrUserNotFound(t *testing.T) {
	client := newTestClient(t)
	repo := NewUserRepository(client)

	_, err := repo.GetUserByUsername(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
