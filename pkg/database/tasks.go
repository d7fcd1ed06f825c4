package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// ErrTaskNotFound is returned when a task id does not exist.
var ErrTaskNotFound = errors.New("optimization task not found")

// TaskRepository persists OptimizationTaskEntity rows plus the task
// config/test-case payloads the engine needs to (re)build an
// OptimizationContext, against the optimization_tasks table.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository builds a TaskRepository over client's pool.
func NewTaskRepository(client *Client) *TaskRepository {
	return &TaskRepository{db: client.db}
}

// InsertTask persists a new task row along with its engine config and
// test case population.
func (r *TaskRepository) InsertTask(ctx context.Context, entity models.OptimizationTaskEntity, cfg models.TaskConfig, testCases []models.TestCase) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	testCasesJSON, err := json.Marshal(testCases)
	if err != nil {
		return fmt.Errorf("marshal test_cases: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO optimization_tasks (
			id, workspace_id, user_id, mode, status, config, test_cases,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		entity.ID, entity.WorkspaceID, entity.CreatedByUserID, string(entity.Mode), string(entity.Status),
		cfgJSON, testCasesJSON, entity.CreatedAt, entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert optimization task: %w", err)
	}
	return nil
}

// UpdateTaskStatus updates a task's coarse status and updated_at.
func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, id string, status models.OptimizationTaskStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE optimization_tasks SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update optimization task status: %w", err)
	}
	return nil
}

// UpdateTaskConfig persists cfg, used by add-rounds to durably bump
// max_iterations.
func (r *TaskRepository) UpdateTaskConfig(ctx context.Context, id string, cfg models.TaskConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE optimization_tasks SET config = $2, updated_at = now() WHERE id = $1`,
		id, cfgJSON,
	)
	if err != nil {
		return fmt.Errorf("update optimization task config: %w", err)
	}
	return nil
}

// GetTask returns the task entity, its config, and its test cases, or
// ErrTaskNotFound.
func (r *TaskRepository) GetTask(ctx context.Context, id string) (models.OptimizationTaskEntity, models.TaskConfig, []models.TestCase, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, user_id, mode, status, config, test_cases, created_at, updated_at
		FROM optimization_tasks WHERE id = $1`, id)

	var entity models.OptimizationTaskEntity
	var mode, status string
	var cfgJSON, testCasesJSON []byte

	err := row.Scan(&entity.ID, &entity.WorkspaceID, &entity.CreatedByUserID, &mode, &status,
		&cfgJSON, &testCasesJSON, &entity.CreatedAt, &entity.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OptimizationTaskEntity{}, models.TaskConfig{}, nil, ErrTaskNotFound
	}
	if err != nil {
		return models.OptimizationTaskEntity{}, models.TaskConfig{}, nil, fmt.Errorf("get optimization task: %w", err)
	}
	entity.Mode = models.OptimizationTaskMode(mode)
	entity.Status = models.OptimizationTaskStatus(status)

	var cfg models.TaskConfig
	if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
		return models.OptimizationTaskEntity{}, models.TaskConfig{}, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	var testCases []models.TestCase
	if err := json.Unmarshal(testCasesJSON, &testCases); err != nil {
		return models.OptimizationTaskEntity{}, models.TaskConfig{}, nil, fmt.Errorf("unmarshal test_cases: %w", err)
	}
	return entity, cfg, testCases, nil
}

// ListTasksByWorkspace returns every task entity in workspaceID, newest
// first.
func (r *TaskRepository) ListTasksByWorkspace(ctx context.Context, workspaceID string) ([]models.OptimizationTaskEntity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, user_id, mode, status, created_at, updated_at
		FROM optimization_tasks WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list optimization tasks: %w", err)
	}
	defer rows.Close()

	var out []models.OptimizationTaskEntity
	for rows.Next() {
		var entity models.OptimizationTaskEntity
		var mode, status string
		if err := rows.Scan(&entity.ID, &entity.WorkspaceID, &entity.CreatedByUserID, &mode, &status,
			&entity.CreatedAt, &entity.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan optimization task: %w", err)
		}
		entity.Mode = models.OptimizationTaskMode(mode)
		entity.Status = models.OptimizationTaskStatus(status)
		out = append(out, entity)
	}
	return out, rows.Err()
}
