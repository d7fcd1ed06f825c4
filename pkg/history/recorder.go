// Package history implements the History Event Recorder: a durable,
// best-effort append log of audit events tagged with a correlation id.
// Persistence failures are non-fatal to the iteration but are logged; the
// engine never conditions control flow on event success, mirroring the
// teacher's pkg/events.ConnectionManager fire-and-forget delivery style.
package history

import (
	"context"
	"log/slog"

	"github.com/codeready-toolchain/promptforge/pkg/ids"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
)

// Repository persists history events. Implemented by pkg/database against
// Postgres; a caller in tests may substitute an in-memory fake.
type Repository interface {
	InsertHistoryEvent(ctx context.Context, event models.HistoryEvent) error
}

// Recorder records history events, falling back to the pause registry's
// last-known correlation id (and finally "unknown") when the caller omits
// one.
type Recorder struct {
	repo     Repository
	registry *pause.Registry
}

// NewRecorder builds a Recorder over repo, consulting registry for
// correlation-id fallback.
func NewRecorder(repo Repository, registry *pause.Registry) *Recorder {
	return &Recorder{repo: repo, registry: registry}
}

// Record persists one history event synchronously, propagating storage
// errors to the caller.
func (r *Recorder) Record(ctx context.Context, taskID string, eventType models.EventType, actor models.Actor, details map[string]any, iteration *uint32, correlationID string) error {
	event := r.build(taskID, eventType, actor, details, iteration, correlationID)
	return r.repo.InsertHistoryEvent(ctx, event)
}

// RecordAsync fires the write in a goroutine: failures are logged, never
// panicked, and never block the caller.
func (r *Recorder) RecordAsync(ctx context.Context, taskID string, eventType models.EventType, actor models.Actor, details map[string]any, iteration *uint32, correlationID string) {
	event := r.build(taskID, eventType, actor, details, iteration, correlationID)
	go func() {
		if err := r.repo.InsertHistoryEvent(context.WithoutCancel(ctx), event); err != nil {
			slog.Warn("history event persistence failed",
				"task_id", taskID, "event_type", eventType, "correlation_id", event.CorrelationID, "error", err)
		}
	}()
}

func (r *Recorder) build(taskID string, eventType models.EventType, actor models.Actor, details map[string]any, iteration *uint32, correlationID string) models.HistoryEvent {
	if correlationID == "" {
		correlationID = r.resolveCorrelationID(taskID)
	}
	return models.HistoryEvent{
		ID:            ids.NewID(),
		TaskID:        taskID,
		EventType:     eventType,
		Actor:         actor,
		Details:       details,
		Iteration:     iteration,
		CorrelationID: correlationID,
		CreatedAt:     unixMilliToTime(ids.NowMs()),
	}
}

func (r *Recorder) resolveCorrelationID(taskID string) string {
	if r.registry != nil {
		if cid := r.registry.GetOrCreate(taskID).GetLastCorrelationID(); cid != "" {
			return cid
		}
	}
	slog.Warn("history event missing correlation id, falling back to unknown", "task_id", taskID)
	return models.UnknownCorrelationID
}
