package models

import "time"

// EventType enumerates the 13 kinds of history events, grounded on the
// original implementation's domain/models/history_event module. Wire
// format is snake_case.
type EventType string

const (
	EventIterationStarted   EventType = "iteration_started"
	EventStateTransitioned  EventType = "state_transitioned"
	EventCheckpointSaved    EventType = "checkpoint_saved"
	EventRollback           EventType = "rollback"
	EventCheckpointRecovered EventType = "checkpoint_recovered"
	EventUserPause          EventType = "user_pause"
	EventUserResume         EventType = "user_resume"
	EventGuidanceUpdated    EventType = "guidance_updated"
	EventRoundsAdded        EventType = "rounds_added"
	EventTaskTerminated     EventType = "task_terminated"
	EventErrorOccurred      EventType = "error_occurred"
	EventIterationCompleted EventType = "iteration_completed"
	EventTaskCompleted      EventType = "task_completed"
)

// Actor identifies who caused a history event.
type Actor string

const (
	ActorSystem Actor = "System"
	ActorUser   Actor = "User"
)

// HistoryEvent is a single append-only audit record. CorrelationID is
// required; "unknown" is allowed only as a degraded fallback.
type HistoryEvent struct {
	ID            string         `json:"id"`
	TaskID        string         `json:"task_id"`
	EventType     EventType      `json:"event_type"`
	Actor         Actor          `json:"actor"`
	Details       map[string]any `json:"details,omitempty"`
	Iteration     *uint32        `json:"iteration,omitempty"`
	CorrelationID string         `json:"correlation_id"`
	CreatedAt     time.Time      `json:"created_at"`
}

// UnknownCorrelationID is the literal fallback used when no correlation id
// can be found anywhere in the call chain.
const UnknownCorrelationID = "unknown"
