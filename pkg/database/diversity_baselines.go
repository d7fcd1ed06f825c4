package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// DiversityBaselineRepository persists each task's first recorded
// DiversityMetrics snapshot, so later iterations have something to
// compare against. Grounded on the original implementation's
// infra/db/repositories/diversity_baseline_repo.rs (get_by_task_id,
// insert_if_absent, upsert).
type DiversityBaselineRepository struct {
	db *sql.DB
}

// NewDiversityBaselineRepository builds a DiversityBaselineRepository over
// client's pool.
func NewDiversityBaselineRepository(client *Client) *DiversityBaselineRepository {
	return &DiversityBaselineRepository{db: client.db}
}

// GetByTaskID returns taskID's baseline and true, or false if none has
// been recorded yet.
func (r *DiversityBaselineRepository) GetByTaskID(ctx context.Context, taskID string) (models.DiversityBaseline, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, metrics, iteration, recorded_at
		FROM diversity_baselines WHERE task_id = $1`, taskID)

	b, err := scanDiversityBaseline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DiversityBaseline{}, false, nil
	}
	if err != nil {
		return models.DiversityBaseline{}, false, fmt.Errorf("get diversity baseline: %w", err)
	}
	return b, true, nil
}

// InsertIfAbsent records metrics as taskID's baseline unless one already
// exists; idempotent across repeated calls within the same iteration.
func (r *DiversityBaselineRepository) InsertIfAbsent(ctx context.Context, id, taskID string, metrics models.DiversityMetrics, iteration uint32) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("marshal diversity metrics: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO diversity_baselines (id, task_id, metrics, iteration)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id) DO NOTHING`,
		id, taskID, raw, iteration,
	)
	if err != nil {
		return fmt.Errorf("insert diversity baseline: %w", err)
	}
	return nil
}

// Upsert replaces taskID's baseline with metrics, returning the stored row.
func (r *DiversityBaselineRepository) Upsert(ctx context.Context, id, taskID string, metrics models.DiversityMetrics, iteration uint32) (models.DiversityBaseline, error) {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return models.DiversityBaseline{}, fmt.Errorf("marshal diversity metrics: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO diversity_baselines (id, task_id, metrics, iteration)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (task_id) DO UPDATE SET
			metrics = excluded.metrics,
			iteration = excluded.iteration,
			recorded_at = now()`,
		id, taskID, raw, iteration,
	)
	if err != nil {
		return models.DiversityBaseline{}, fmt.Errorf("upsert diversity baseline: %w", err)
	}
	b, _, err := r.GetByTaskID(ctx, taskID)
	return b, err
}

func scanDiversityBaseline(row rowScanner) (models.DiversityBaseline, error) {
	var b models.DiversityBaseline
	var raw []byte
	var recordedAt time.Time

	if err := row.Scan(&b.ID, &b.TaskID, &raw, &b.Iteration, &recordedAt); err != nil {
		return models.DiversityBaseline{}, err
	}
	if err := json.Unmarshal(raw, &b.Metrics); err != nil {
		return models.DiversityBaseline{}, fmt.Errorf("unmarshal diversity metrics: %w", err)
	}
	b.RecordedAt = recordedAt.UTC().Format(time.RFC3339)
	return b, nil
}
