// Package tasks is the ambient-layer wrapper around the Optimization
// Engine Facade: it owns the workspace/user-scoped OptimizationTaskEntity
// lifecycle, launches each task's engine.Run in its own goroutine, and
// exposes the pause/resume/add-rounds/terminate/candidates operations
// pkg/api's handlers call, grounded on the teacher's pkg/queue.WorkerPool
// goroutine-per-job-with-a-tracked-handle pattern.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/engine"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/ids"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
)

// Repository persists OptimizationTaskEntity rows plus their engine config
// and test case population. Implemented by pkg/database.TaskRepository.
type Repository interface {
	InsertTask(ctx context.Context, entity models.OptimizationTaskEntity, cfg models.TaskConfig, testCases []models.TestCase) error
	UpdateTaskStatus(ctx context.Context, id string, status models.OptimizationTaskStatus) error
	UpdateTaskConfig(ctx context.Context, id string, cfg models.TaskConfig) error
	GetTask(ctx context.Context, id string) (models.OptimizationTaskEntity, models.TaskConfig, []models.TestCase, error)
	ListTasksByWorkspace(ctx context.Context, workspaceID string) ([]models.OptimizationTaskEntity, error)
}

// running tracks one in-flight task's live OptimizationContext and the
// cancel func for its driving goroutine's context.
type running struct {
	mu     sync.Mutex
	optCtx *models.OptimizationContext
	cancel context.CancelFunc
}

func (r *running) snapshot() models.OptimizationContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.optCtx
}

// Manager is the task lifecycle manager sitting between pkg/api and the
// Engine Facade.
type Manager struct {
	repo        Repository
	engine      *engine.Engine
	checkpoints *checkpoint.Manager
	history     *history.Recorder
	pauseReg    *pause.Registry

	mu      sync.Mutex
	active  map[string]*running
}

// New builds a Manager. The four collaborators mirror engine.Engine's own
// — pkg/tasks is the layer immediately above the facade, not a
// replacement for it.
func New(repo Repository, eng *engine.Engine, checkpoints *checkpoint.Manager, recorder *history.Recorder, pauseReg *pause.Registry) *Manager {
	return &Manager{
		repo:        repo,
		engine:      eng,
		checkpoints: checkpoints,
		history:     recorder,
		pauseReg:    pauseReg,
		active:      make(map[string]*running),
	}
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	WorkspaceID string               `json:"workspace_id"`
	Goal        string               `json:"goal"`
	Mode        models.OptimizationTaskMode `json:"mode"`
	Config      models.TaskConfig   `json:"config"`
	TestCases   []models.TestCase   `json:"test_cases"`
}

// Create persists a new task in Running status and immediately launches its
// optimization run in a background goroutine, returning the entity.
func (m *Manager) Create(ctx context.Context, req CreateTaskRequest, userID, correlationID string) (models.OptimizationTaskEntity, error) {
	if req.WorkspaceID == "" {
		return models.OptimizationTaskEntity{}, apperrors.Validation("TASK_MISSING_WORKSPACE", "workspace_id is required")
	}
	if len(req.TestCases) == 0 {
		return models.OptimizationTaskEntity{}, apperrors.Validation("TASK_MISSING_TEST_CASES", "at least one test case is required")
	}
	if req.Config.MaxIterations == 0 {
		return models.OptimizationTaskEntity{}, apperrors.Validation("TASK_MISSING_MAX_ITERATIONS", "max_iterations must be greater than zero")
	}
	mode := req.Mode
	if mode == "" {
		mode = models.ModeFixed
	}

	now := time.Now()
	entity := models.OptimizationTaskEntity{
		ID:                  ids.NewID(),
		WorkspaceID:         req.WorkspaceID,
		CreatedByUserID:     userID,
		Goal:                req.Goal,
		Mode:                mode,
		Status:              models.TaskStatusRunning,
		ExecutionTargetType: models.ExecutionTargetType(req.Config.ExecutionTargetType),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := m.repo.InsertTask(ctx, entity, req.Config, req.TestCases); err != nil {
		return models.OptimizationTaskEntity{}, apperrors.Wrap(apperrors.KindInternal, "TASK_CREATE_FAILED", "failed to persist task", err)
	}

	optCtx := models.NewOptimizationContext(entity.ID, req.Config)
	optCtx.TestCases = req.TestCases

	m.launch(entity.ID, optCtx, correlationID)
	return entity, nil
}

// launch starts optCtx's engine.Run in a tracked background goroutine.
func (m *Manager) launch(taskID string, optCtx *models.OptimizationContext, correlationID string) {
	runCtx, cancel := context.WithCancel(context.Background())
	r := &running{optCtx: optCtx, cancel: cancel}

	m.mu.Lock()
	m.active[taskID] = r
	m.mu.Unlock()

	go func() {
		result, err := m.engine.Run(runCtx, optCtx, correlationID)
		if err != nil {
			slog.Error("task run ended in error", "task_id", taskID, "error", err)
		}

		status := models.TaskStatusFinished
		if result.FinalState == models.StateUserStopped {
			status = models.TaskStatusSuspended
		}
		if updateErr := m.repo.UpdateTaskStatus(context.Background(), taskID, status); updateErr != nil {
			slog.Error("failed to persist final task status", "task_id", taskID, "error", updateErr)
		}

		m.mu.Lock()
		delete(m.active, taskID)
		m.mu.Unlock()
		m.pauseReg.Remove(taskID)
	}()
}

// Get returns the live OptimizationContext snapshot for a running task, or
// the persisted entity alone (nil context) for one that is not running.
func (m *Manager) Get(ctx context.Context, taskID string) (models.OptimizationTaskEntity, *models.OptimizationContext, error) {
	entity, _, _, err := m.repo.GetTask(ctx, taskID)
	if err != nil {
		return models.OptimizationTaskEntity{}, nil, apperrors.NotFound("TASK_NOT_FOUND", "task not found")
	}

	m.mu.Lock()
	r, ok := m.active[taskID]
	m.mu.Unlock()
	if !ok {
		return entity, nil, nil
	}
	snap := r.snapshot()
	return entity, &snap, nil
}

// List returns every task entity in workspaceID.
func (m *Manager) List(ctx context.Context, workspaceID string) ([]models.OptimizationTaskEntity, error) {
	return m.repo.ListTasksByWorkspace(ctx, workspaceID)
}

// Pause requests a cooperative pause of taskID's in-flight run.
func (m *Manager) Pause(taskID, correlationID, userID string) error {
	if !m.isActive(taskID) {
		return apperrors.NotFound("TASK_NOT_RUNNING", "task is not currently running")
	}
	m.pauseReg.GetOrCreate(taskID).RequestPause(correlationID, userID)
	return nil
}

// Resume signals taskID's paused run to continue.
func (m *Manager) Resume(taskID, correlationID, userID string) error {
	if !m.isActive(taskID) {
		return apperrors.NotFound("TASK_NOT_RUNNING", "task is not currently running")
	}
	if err := m.pauseReg.GetOrCreate(taskID).Resume(correlationID, userID); err != nil {
		return apperrors.Validation("TASK_NOT_PAUSED", err.Error())
	}
	return nil
}

// AddRounds raises taskID's max_iterations cap by additionalRounds,
// bounded [1,100] by models.AddRoundsRequest.Validate, and requires the
// new cap to exceed the task's current iteration.
func (m *Manager) AddRounds(ctx context.Context, taskID string, req models.AddRoundsRequest, correlationID string) (models.AddRoundsResponse, error) {
	if err := req.Validate(); err != nil {
		return models.AddRoundsResponse{}, apperrors.Validation("TASK_ADD_ROUNDS_OUT_OF_RANGE", err.Error())
	}

	m.mu.Lock()
	r, ok := m.active[taskID]
	m.mu.Unlock()
	if !ok {
		return models.AddRoundsResponse{}, apperrors.NotFound("TASK_NOT_RUNNING", "task is not currently running")
	}

	r.mu.Lock()
	newCap := r.optCtx.Config.MaxIterations + req.AdditionalRounds
	if newCap <= r.optCtx.Iteration {
		r.mu.Unlock()
		return models.AddRoundsResponse{}, apperrors.Validation("TASK_ADD_ROUNDS_NOT_ABOVE_CURRENT", "new max_iterations must exceed the current iteration")
	}
	r.optCtx.Config.MaxIterations = newCap
	r.mu.Unlock()

	if err := m.repo.UpdateTaskConfig(ctx, taskID, r.snapshot().Config); err != nil {
		slog.Warn("failed to persist raised iteration cap", "task_id", taskID, "error", err)
	}
	if m.history != nil {
		iter := r.snapshot().Iteration
		m.history.RecordAsync(ctx, taskID, models.EventRoundsAdded, models.ActorUser,
			map[string]any{"additional_rounds": req.AdditionalRounds, "new_max_iterations": newCap}, &iter, correlationID)
	}

	return models.AddRoundsResponse{NewMaxIterations: newCap}, nil
}

// Rollback archives taskID's checkpoints descending from req.CheckpointID,
// mints a new branch, and restarts the task's run from the restored
// context on that branch — replacing any currently in-flight run for the
// task, matching "a new iteration can proceed from ckpt-1".
func (m *Manager) Rollback(ctx context.Context, taskID string, req models.RollbackRequest, correlationID, userID string) (models.RollbackResponse, error) {
	resp, target, err := m.checkpoints.Rollback(ctx, taskID, req.CheckpointID, req.Confirm, correlationID, userID)
	if err != nil {
		return models.RollbackResponse{}, err
	}

	_, cfg, testCases, err := m.repo.GetTask(ctx, taskID)
	if err != nil {
		return models.RollbackResponse{}, apperrors.Wrap(apperrors.KindInternal, "TASK_ROLLBACK_RELOAD_FAILED", "failed to reload task for rollback restart", err)
	}

	m.mu.Lock()
	if r, ok := m.active[taskID]; ok {
		r.cancel()
		delete(m.active, taskID)
	}
	m.mu.Unlock()
	m.pauseReg.Remove(taskID)

	optCtx := models.NewOptimizationContext(taskID, cfg)
	optCtx.TestCases = testCases
	optCtx.CurrentPrompt = target.Prompt
	if target.RuleSystem != nil {
		optCtx.RuleSystem = target.RuleSystem
	}
	optCtx.Iteration = target.Iteration
	optCtx.Extensions["checkpoint.branch_id"] = resp.NewBranchID

	if err := m.repo.UpdateTaskStatus(ctx, taskID, models.TaskStatusRunning); err != nil {
		slog.Warn("failed to persist running status after rollback", "task_id", taskID, "error", err)
	}
	m.launch(taskID, optCtx, correlationID)

	return resp, nil
}

// Terminate requests an immediate stop of taskID's run, optionally
// selecting a specific checkpoint's prompt as the task's final result
// rather than the most recently saved one.
func (m *Manager) Terminate(ctx context.Context, taskID string, req models.TerminateTaskRequest) (models.TerminateTaskResponse, error) {
	if m.isActive(taskID) {
		m.pauseReg.GetOrCreate(taskID).RequestTermination("", "")
	}

	var final models.Checkpoint
	var err error
	if req.SelectedIterationID != "" {
		final, err = m.checkpoints.Get(ctx, req.SelectedIterationID)
		if err != nil {
			return models.TerminateTaskResponse{}, apperrors.NotFound("CHECKPOINT_NOT_FOUND", "selected checkpoint not found")
		}
	} else {
		list, listErr := m.checkpoints.List(ctx, taskID, false)
		if listErr != nil || len(list) == 0 {
			return models.TerminateTaskResponse{}, apperrors.Wrap(apperrors.KindInternal, "TASK_TERMINATE_NO_CHECKPOINT", "no checkpoint available to finalize on", listErr)
		}
		final = list[0]
	}

	if err := m.repo.UpdateTaskStatus(ctx, taskID, models.TaskStatusSuspended); err != nil {
		slog.Warn("failed to persist terminated task status", "task_id", taskID, "error", err)
	}

	return models.TerminateTaskResponse{FinalCheckpointID: final.ID, FinalPrompt: final.Prompt}, nil
}

// Candidates lists non-archived checkpoints for taskID as
// CandidatePromptSummary rows, for the terminate flow's picker.
func (m *Manager) Candidates(ctx context.Context, taskID string) ([]models.CandidatePromptSummary, error) {
	list, err := m.checkpoints.List(ctx, taskID, false)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "TASK_CANDIDATES_LIST_FAILED", "failed to list checkpoints", err)
	}

	out := make([]models.CandidatePromptSummary, 0, len(list))
	for _, cp := range list {
		var passRate float64
		if cp.PassRateSummary != nil {
			passRate = cp.PassRateSummary.PassRate
		}
		out = append(out, models.CandidatePromptSummary{
			CheckpointID:  cp.ID,
			Iteration:     cp.Iteration,
			PromptPreview: models.TruncatePromptPreview(cp.Prompt),
			PassRate:      passRate,
			CreatedAt:     cp.CreatedAt,
		})
	}
	return out, nil
}

func (m *Manager) isActive(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[taskID]
	return ok
}
