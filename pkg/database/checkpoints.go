package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// CheckpointRepository implements checkpoint.Repository against Postgres.
type CheckpointRepository struct {
	db *sql.DB
}

// NewCheckpointRepository builds a CheckpointRepository over client's pool.
func NewCheckpointRepository(client *Client) *CheckpointRepository {
	return &CheckpointRepository{db: client.db}
}

var _ checkpoint.Repository = (*CheckpointRepository)(nil)

// InsertCheckpoint persists c.
func (r *CheckpointRepository) InsertCheckpoint(ctx context.Context, c models.Checkpoint) error {
	ruleSystem, err := json.Marshal(c.RuleSystem)
	if err != nil {
		return fmt.Errorf("marshal rule_system: %w", err)
	}
	artifacts, err := json.Marshal(c.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	passRateSummary, err := json.Marshal(c.PassRateSummary)
	if err != nil {
		return fmt.Errorf("marshal pass_rate_summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO checkpoints (
			id, task_id, iteration, state, run_control_state, prompt,
			rule_system, artifacts, user_guidance, branch_id, parent_id,
			lineage_type, branch_description, checksum, pass_rate_summary,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		c.ID, c.TaskID, c.Iteration, string(c.State), string(c.RunControlState), c.Prompt,
		ruleSystem, artifacts, c.UserGuidance, c.BranchID, c.ParentID,
		string(c.LineageType), c.BranchDescription, c.Checksum, passRateSummary,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	return nil
}

// GetCheckpoint returns the checkpoint with id, or checkpoint.ErrNotFound.
func (r *CheckpointRepository) GetCheckpoint(ctx context.Context, id string) (models.Checkpoint, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, iteration, state, run_control_state, prompt,
		       rule_system, artifacts, user_guidance, branch_id, parent_id,
		       lineage_type, branch_description, checksum, pass_rate_summary,
		       created_at, archived_at, archive_reason
		FROM checkpoints WHERE id = $1`, id)

	c, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Checkpoint{}, checkpoint.ErrNotFound
	}
	if err != nil {
		return models.Checkpoint{}, fmt.Errorf("get checkpoint: %w", err)
	}
	return c, nil
}

// ListCheckpoints returns every checkpoint for taskID, newest first,
// optionally including archived ones.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context, taskID string, includeArchived bool) ([]models.Checkpoint, error) {
	query := `
		SELECT id, task_id, iteration, state, run_control_state, prompt,
		       rule_system, artifacts, user_guidance, branch_id, parent_id,
		       lineage_type, branch_description, checksum, pass_rate_summary,
		       created_at, archived_at, archive_reason
		FROM checkpoints WHERE task_id = $1`
	if !includeArchived {
		query += ` AND archived_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []models.Checkpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ArchiveDescendants soft-deletes every checkpoint transitively reachable
// from fromCheckpointID (via parent_id) within taskID, using a recursive
// CTE so multi-level branch descent (grandchildren and beyond) is
// archived in one statement rather than the one-level-only walk the
// in-memory test fakes perform.
func (r *CheckpointRepository) ArchiveDescendants(ctx context.Context, taskID, fromCheckpointID, reason string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		WITH RECURSIVE descendants AS (
			SELECT id FROM checkpoints WHERE task_id = $1 AND parent_id = $2
			UNION ALL
			SELECT ck.id FROM checkpoints ck
			JOIN descendants d ON ck.parent_id = d.id
			WHERE ck.task_id = $1
		)
		UPDATE checkpoints
		SET archived_at = now(), archive_reason = $3
		WHERE id IN (SELECT id FROM descendants) AND archived_at IS NULL`,
		taskID, fromCheckpointID, reason,
	)
	if err != nil {
		return 0, fmt.Errorf("archive descendants: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive descendants rows affected: %w", err)
	}
	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (models.Checkpoint, error) {
	var c models.Checkpoint
	var state, runControlState, lineageType string
	var ruleSystem, artifacts, passRateSummary []byte
	var archivedAt sql.NullTime

	err := row.Scan(
		&c.ID, &c.TaskID, &c.Iteration, &state, &runControlState, &c.Prompt,
		&ruleSystem, &artifacts, &c.UserGuidance, &c.BranchID, &c.ParentID,
		&lineageType, &c.BranchDescription, &c.Checksum, &passRateSummary,
		&c.CreatedAt, &archivedAt, &c.ArchiveReason,
	)
	if err != nil {
		return models.Checkpoint{}, err
	}

	c.State = models.State(state)
	c.RunControlState = models.RunControlState(runControlState)
	c.LineageType = models.LineageType(lineageType)
	if archivedAt.Valid {
		c.ArchivedAt = &archivedAt.Time
	}

	if len(ruleSystem) > 0 && string(ruleSystem) != "null" {
		if err := json.Unmarshal(ruleSystem, &c.RuleSystem); err != nil {
			return models.Checkpoint{}, fmt.Errorf("unmarshal rule_system: %w", err)
		}
	}
	if len(artifacts) > 0 && string(artifacts) != "null" {
		if err := json.Unmarshal(artifacts, &c.Artifacts); err != nil {
			return models.Checkpoint{}, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}
	if len(passRateSummary) > 0 && string(passRateSummary) != "null" {
		if err := json.Unmarshal(passRateSummary, &c.PassRateSummary); err != nil {
			return models.Checkpoint{}, fmt.Errorf("unmarshal pass_rate_summary: %w", err)
		}
	}
	return c, nil
}
