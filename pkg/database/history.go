package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// HistoryRepository implements history.Repository against Postgres.
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository builds a HistoryRepository over client's pool.
func NewHistoryRepository(client *Client) *HistoryRepository {
	return &HistoryRepository{db: client.db}
}

var _ history.Repository = (*HistoryRepository)(nil)

// InsertHistoryEvent persists event.
func (r *HistoryRepository) InsertHistoryEvent(ctx context.Context, event models.HistoryEvent) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	var iteration sql.NullInt64
	if event.Iteration != nil {
		iteration = sql.NullInt64{Int64: int64(*event.Iteration), Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO history_events (
			id, task_id, event_type, actor, details, iteration,
			correlation_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		event.ID, event.TaskID, string(event.EventType), string(event.Actor), details,
		iteration, event.CorrelationID, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history event: %w", err)
	}
	return nil
}

// ListHistoryEvents returns every event for taskID, oldest first.
func (r *HistoryRepository) ListHistoryEvents(ctx context.Context, taskID string) ([]models.HistoryEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, event_type, actor, details, iteration,
		       correlation_id, created_at
		FROM history_events WHERE task_id = $1 ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list history events: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEvent
	for rows.Next() {
		var e models.HistoryEvent
		var eventType, actor string
		var details []byte
		var iteration sql.NullInt64

		if err := rows.Scan(&e.ID, &e.TaskID, &eventType, &actor, &details, &iteration, &e.CorrelationID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history event: %w", err)
		}
		e.EventType = models.EventType(eventType)
		e.Actor = models.Actor(actor)
		if iteration.Valid {
			v := uint32(iteration.Int64)
			e.Iteration = &v
		}
		if len(details) > 0 && string(details) != "null" {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
