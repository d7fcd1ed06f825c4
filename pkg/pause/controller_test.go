package pause

import (
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameInstance(t *testing.T) {
	reg := NewRegistry()
	a := reg.GetOrCreate("task-1")
	b := reg.GetOrCreate("task-1")
	assert.Same(t, a, b)
}

func TestPauseResumeLifecycle(t *testing.T) {
	reg := NewRegistry()
	c := reg.GetOrCreate("task-1")

	assert.False(t, c.IsPauseRequested())
	c.RequestPause("cid-1", "user-1")
	assert.True(t, c.IsPauseRequested())
	assert.Equal(t, "cid-1", c.GetLastCorrelationID())

	// Idempotent.
	c.RequestPause("cid-1b", "user-1")
	assert.True(t, c.IsPauseRequested())

	snap := &models.OptimizationContext{TaskID: "task-1"}
	ok := c.CheckpointPause("cid-2", snap)
	require.True(t, ok)
	assert.Equal(t, models.RunControlPaused, c.RunControlState())

	// Guidance only while paused.
	require.NoError(t, c.UpdateGuidance("测试引导", "cid-2", "user-1"))
	assert.Equal(t, "测试引导", c.Guidance())

	require.NoError(t, c.Resume("cid-3", "user-1"))
	assert.Equal(t, models.RunControlResuming, c.RunControlState())
	c.MarkRunning()
	assert.Equal(t, models.RunControlRunning, c.RunControlState())

	got := c.TakeSnapshot()
	require.NotNil(t, got)
	assert.Equal(t, "task-1", got.TaskID)
	assert.Nil(t, c.TakeSnapshot())
}

func TestCheckpointPauseFailsWithoutPendingRequest(t *testing.T) {
	reg := NewRegistry()
	c := reg.GetOrCreate("task-2")
	ok := c.CheckpointPause("cid", &models.OptimizationContext{})
	assert.False(t, ok)
}

func TestUpdateGuidanceRejectedWhenNotPaused(t *testing.T) {
	reg := NewRegistry()
	c := reg.GetOrCreate("task-3")
	assert.Error(t, c.UpdateGuidance("x", "cid", "user"))
}
