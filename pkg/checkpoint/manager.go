// Package checkpoint implements the Checkpoint Manager: checksum
// computation/verification, durable persistence, a bounded per-task
// in-memory cache, archive-on-rollback, and branch lineage.
package checkpoint

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/ids"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
)

// Repository persists checkpoints. Implemented by pkg/database against
// Postgres.
type Repository interface {
	InsertCheckpoint(ctx context.Context, c models.Checkpoint) error
	GetCheckpoint(ctx context.Context, id string) (models.Checkpoint, error)
	ListCheckpoints(ctx context.Context, taskID string, includeArchived bool) ([]models.Checkpoint, error)
	// ArchiveDescendants soft-deletes every checkpoint whose lineage
	// descends strictly from fromCheckpointID on its branch, and returns
	// the count archived.
	ArchiveDescendants(ctx context.Context, taskID, fromCheckpointID, reason string) (int, error)
}

// ErrNotFound is returned when a checkpoint id does not exist.
var ErrNotFound = errors.New("checkpoint not found")

// Manager is the Checkpoint Manager.
type Manager struct {
	repo     Repository
	recorder *history.Recorder
	registry *pause.Registry
	cache    *cache

	alertThreshold int
	degraded       atomic.Bool
}

// New builds a Manager with the given cache limit (the configured L from
// CHECKPOINT_CACHE_LIMIT) and alert threshold (A).
func New(repo Repository, recorder *history.Recorder, registry *pause.Registry, cacheLimit, alertThreshold int) *Manager {
	return &Manager{
		repo:           repo,
		recorder:       recorder,
		registry:       registry,
		cache:          newCache(cacheLimit),
		alertThreshold: alertThreshold,
	}
}

// Degraded reports whether the last Save fell back to degrade mode because
// durable storage was unavailable.
func (m *Manager) Degraded() bool {
	return m.degraded.Load()
}

// Metrics returns the cache's metrics snapshot for GET /meta/checkpoint-metrics.
func (m *Manager) Metrics() Metrics {
	return Metrics{
		TotalTasks:     m.cache.totalTasks(),
		TotalCached:    m.cache.totalCached(),
		CacheLimit:     m.cache.limit,
		AlertThreshold: m.alertThreshold,
	}
}

// Save assembles, checksums, and persists a checkpoint from ctx, inserts it
// into the cache, and emits a best-effort CheckpointSaved history event.
//
// If storage is unavailable, Save logs at WARN and returns a synthetic
// in-memory entity so the engine can continue — recovery is not guaranteed
// in this degraded mode, and Degraded() reports it for health surfacing.
func (m *Manager) Save(ctx context.Context, optCtx *models.OptimizationContext, lineage models.LineageType, parentID, branchDescription, correlationID, userID string) (models.Checkpoint, error) {
	guidance := ""
	if m.registry != nil {
		guidance = m.registry.GetOrCreate(optCtx.TaskID).Guidance()
	}

	cp := models.Checkpoint{
		ID:                ids.NewID(),
		TaskID:            optCtx.TaskID,
		Iteration:         optCtx.Iteration,
		State:             optCtx.State,
		RunControlState:   optCtx.RunControlState,
		Prompt:            optCtx.CurrentPrompt,
		RuleSystem:        optCtx.RuleSystem,
		UserGuidance:      guidance,
		ParentID:          parentID,
		LineageType:       lineage,
		BranchDescription: branchDescription,
		CreatedAt:         msToTime(ids.NowMs()),
	}
	if branchID, ok := optCtx.Extensions["checkpoint.branch_id"].(string); ok && branchID != "" {
		cp.BranchID = branchID
	} else {
		cp.BranchID = cp.ID // first checkpoint of a task roots its own branch
	}
	cp.Checksum = Checksum(cp)

	if err := m.repo.InsertCheckpoint(ctx, cp); err != nil {
		m.degraded.Store(true)
		slog.Warn("checkpoint storage unavailable, continuing in degraded mode",
			"task_id", optCtx.TaskID, "error", err)
		cp.IntegrityOK = true
		return cp, nil
	}
	m.degraded.Store(false)

	m.cache.insert(cp)

	if m.recorder != nil {
		iter := cp.Iteration
		m.recorder.RecordAsync(ctx, cp.TaskID, models.EventCheckpointSaved, models.ActorSystem,
			map[string]any{"checkpoint_id": cp.ID, "branch_id": cp.BranchID}, &iter, correlationID)
	}

	cp.IntegrityOK = true
	return cp, nil
}

// Get reads a single checkpoint, verifying its checksum. Corrupted records
// are returned with IntegrityOK=false rather than being treated as valid.
func (m *Manager) Get(ctx context.Context, id string) (models.Checkpoint, error) {
	cp, err := m.repo.GetCheckpoint(ctx, id)
	if err != nil {
		return models.Checkpoint{}, err
	}
	cp.IntegrityOK = Checksum(cp) == cp.Checksum
	return cp, nil
}

// List returns a task's checkpoints from the repository, excluding
// archived ones unless includeArchived is set. The in-memory cache is not
// consulted.
func (m *Manager) List(ctx context.Context, taskID string, includeArchived bool) ([]models.Checkpoint, error) {
	return m.repo.ListCheckpoints(ctx, taskID, includeArchived)
}

// CachedCount returns the number of checkpoints currently held in the
// in-memory window for taskID — used by cache-bound tests.
func (m *Manager) CachedCount(taskID string) int {
	return m.cache.count(taskID)
}

// Rollback mints a new branch rooted at targetCheckpointID, archives every
// checkpoint descending from it on the prior branch, and returns the new
// branch id and archived count.
func (m *Manager) Rollback(ctx context.Context, taskID, targetCheckpointID string, confirm bool, correlationID, userID string) (models.RollbackResponse, *models.Checkpoint, error) {
	if !confirm {
		return models.RollbackResponse{}, nil, apperrors.Validation("ROLLBACK_NOT_CONFIRMED", "rollback requires confirm=true")
	}

	target, err := m.Get(ctx, targetCheckpointID)
	if err != nil {
		return models.RollbackResponse{}, nil, apperrors.NotFound("CHECKPOINT_NOT_FOUND", "target checkpoint not found")
	}
	if !target.IntegrityOK {
		return models.RollbackResponse{}, nil, apperrors.New(apperrors.KindIntegrity, "CHECKPOINT_CORRUPTED", "target checkpoint failed integrity check")
	}

	newBranchID := ids.NewID()
	archivedCount, err := m.repo.ArchiveDescendants(ctx, taskID, targetCheckpointID, "rollback")
	if err != nil {
		return models.RollbackResponse{}, nil, apperrors.Wrap(apperrors.KindInternal, "CHECKPOINT_ARCHIVE_FAILED", "failed to archive descendant checkpoints", err)
	}
	m.cache.invalidate(taskID)

	if m.recorder != nil {
		iter := target.Iteration
		m.recorder.RecordAsync(ctx, taskID, models.EventRollback, models.ActorUser,
			map[string]any{"target_checkpoint_id": targetCheckpointID, "new_branch_id": newBranchID}, &iter, correlationID)
		m.recorder.RecordAsync(ctx, taskID, models.EventCheckpointRecovered, models.ActorSystem,
			map[string]any{"checkpoint_id": targetCheckpointID}, &iter, correlationID)
	}

	return models.RollbackResponse{NewBranchID: newBranchID, ArchivedCount: archivedCount}, &target, nil
}
