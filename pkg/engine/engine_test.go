package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/extkeys"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckpointRepo struct {
	mu          sync.Mutex
	byID        map[string]models.Checkpoint
	archivedIDs map[string]bool
}

func newFakeCheckpointRepo() *fakeCheckpointRepo {
	return &fakeCheckpointRepo{byID: map[string]models.Checkpoint{}, archivedIDs: map[string]bool{}}
}

func (f *fakeCheckpointRepo) InsertCheckpoint(_ context.Context, c models.Checkpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[c.ID] = c
	return nil
}

func (f *fakeCheckpointRepo) GetCheckpoint(_ context.Context, id string) (models.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return models.Checkpoint{}, checkpoint.ErrNotFound
	}
	return c, nil
}

func (f *fakeCheckpointRepo) ListCheckpoints(_ context.Context, taskID string, includeArchived bool) ([]models.Checkpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Checkpoint
	for _, c := range f.byID {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCheckpointRepo) ArchiveDescendants(_ context.Context, taskID, fromCheckpointID, reason string) (int, error) {
	return 0, nil
}

type fakeHistoryRepo struct {
	mu     sync.Mutex
	events []models.HistoryEvent
}

func (f *fakeHistoryRepo) InsertHistoryEvent(_ context.Context, e models.HistoryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func newTestEngine() *Engine {
	pauseReg := pause.NewRegistry()
	hist := history.NewRecorder(&fakeHistoryRepo{}, pauseReg)
	ckpt := checkpoint.New(newFakeCheckpointRepo(), hist, pauseReg, 10, 8)
	return New(ckpt, hist, pauseReg, nil, nil, 0, nil)
}

// The Example execution target never echoes its input, so an Exact
// reference never matches its sanitized output: every candidate scores 0,
// nothing is ever adopted, and the engine's default stall threshold
// eventually routes the task to HumanIntervention rather than spinning on
// an iteration counter that never advances.
func TestRunWithExampleExecutionTargetStallsToHumanIntervention(t *testing.T) {
	e := newTestEngine()
	optCtx := models.NewOptimizationContext("task-1", models.TaskConfig{
		MaxIterations:        100,
		TemplateVariantCount: 1,
		ExecutionTargetType:  models.ExecutionTargetExample,
		EvaluatorKind:        "Default",
	})
	optCtx.TestCases = []models.TestCase{{ID: "tc-1", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "x"}}}
	optCtx.Extensions[extkeys.OptimizationGoal] = "Be concise."

	result, err := e.Run(context.Background(), optCtx, "cid-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateHumanIntervention, result.FinalState)
	assert.Equal(t, uint32(0), result.Iteration)
}

func TestRunRejectsUnknownExecutionTargetType(t *testing.T) {
	e := newTestEngine()
	optCtx := models.NewOptimizationContext("task-2", models.TaskConfig{
		MaxIterations:       1,
		ExecutionTargetType: "Bogus",
	})

	_, err := e.Run(context.Background(), optCtx, "cid-2")
	assert.Error(t, err)
}

func TestResumeRejectsCorruptedCheckpoint(t *testing.T) {
	e := newTestEngine()
	cp := models.Checkpoint{TaskID: "task-3", IntegrityOK: false}

	_, err := e.Resume(context.Background(), cp, models.TaskConfig{MaxIterations: 1}, nil, "cid-3")
	assert.Error(t, err)
	metrics := e.RecoveryMetrics("task-3")
	assert.Equal(t, uint32(0), metrics.AttemptCount)
}

func TestResumeRunsOneIterationAndUpdatesRecoveryMetrics(t *testing.T) {
	e := newTestEngine()
	cp := models.Checkpoint{
		TaskID:      "task-4",
		Iteration:   0,
		State:       models.StateIdle,
		Prompt:      "Answer concisely.",
		IntegrityOK: true,
	}
	cfg := models.TaskConfig{
		MaxIterations:        1,
		TemplateVariantCount: 1,
		ExecutionTargetType:  models.ExecutionTargetExample,
	}
	testCases := []models.TestCase{{ID: "tc-1", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "x"}}}

	result, err := e.Resume(context.Background(), cp, cfg, testCases, "cid-4")
	require.NoError(t, err)
	// RunIteration executes exactly one pass and does not drive the task to
	// a terminal state; Optimizing is the last phase transition it reaches
	// with SmartRetesting/SafetyChecking left disabled.
	assert.Equal(t, models.StateOptimizing, result.FinalState)

	metrics := e.RecoveryMetrics("task-4")
	assert.Equal(t, uint32(1), metrics.AttemptCount)
	assert.Equal(t, uint32(1), metrics.SuccessfulCount)
	assert.NotNil(t, metrics.LastAttemptAt)
}
