package database

import (
	"context"
	"testing"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCheckpoint(id, taskID, parentID string) models.Checkpoint {
	return models.Checkpoint{
		ID:          id,
		TaskID:      taskID,
		Iteration:   1,
		State:       models.StateOptimizing,
		Prompt:      "prompt-" + id,
		RuleSystem:  models.NewRuleSystem(),
		BranchID:    "branch-1",
		ParentID:    parentID,
		LineageType: models.LineageAutomatic,
		Checksum:    "checksum-" + id,
		CreatedAt:   time.Now(),
	}
}

func TestCheckpointRepositoryInsertAndGet(t *testing.T) {
	client := newTestClient(t)
	repo := NewCheckpointRepository(client)
	ctx := context.Background()

	cp := newCheckpoint("cp-1", "task-1", "")
	require.NoError(t, repo.InsertCheckpoint(ctx, cp))

	got, err := repo.GetCheckpoint(ctx, "cp-1")
	require.NoError(t, err)
	assert.Equal(t, cp.TaskID, got.TaskID)
	assert.Equal(t, cp.Prompt, got.Prompt)
	assert.NotNil(t, got.RuleSystem)
}

func TestCheckpointRepositoryGetMissingReturnsErrNotFound(t *testing.T) {
	client := newTestClient(t)
	repo := NewCheckpointRepository(client)

	_, err := repo.GetCheckpoint(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestCheckpointRepositoryListExcludesArchivedByDefault(t *testing.T) {
	client := newTestClient(t)
	repo := NewCheckpointRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.InsertCheckpoint(ctx, newCheckpoint("cp-1", "task-1", "")))
	require.NoError(t, repo.InsertCheckpoint(ctx, newCheckpoint("cp-2", "task-1", "cp-1")))
	_, err := repo.ArchiveDescendants(ctx, "task-1", "cp-1", "superseded")
	require.NoError(t, err)

	visible, err := repo.ListCheckpoints(ctx, "task-1", false)
	require.NoError(t, err)
	assert.Len(t, visible, 1)
	assert.Equal(t, "cp-1", visible[0].ID)

	all, err := repo.ListCheckpoints(ctx, "task-1", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCheckpointRepositoryArchiveDescendantsIsTransitive(t *testing.T) {
	client := newTestClient(t)
	repo := NewCheckpointRepository(client)
	ctx := context.Background()

	// root -> child -> grandchild; archiving from root must reach both
	// descendants, not just the direct child.
	require.NoError(t, repo.InsertCheckpoint(ctx, newCheckpoint("root", "task-1", "")))
	require.NoError(t, repo.InsertCheckpoint(ctx, newCheckpoint("child", "task-1", "root")))
	require.NoError(t, repo.InsertCheckpoint(ctx, newCheckpoint("grandchild", "task-1", "child")))

	count, err := repo.ArchiveDescendants(ctx, "task-1", "root", "rolled back")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := repo.ListCheckpoints(ctx, "task-1", false)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "root", remaining[0].ID)
}
