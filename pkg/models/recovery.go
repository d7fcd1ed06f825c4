package models

import "time"

// ConnectivityStatus is the tri-state reported by the Connectivity
// Sentinel.
type ConnectivityStatus string

const (
	ConnectivityOnline  ConnectivityStatus = "Online"
	ConnectivityLimited ConnectivityStatus = "Limited"
	ConnectivityOffline ConnectivityStatus = "Offline"
)

// ConnectivityResponse is the external shape of the sentinel's cached
// status, recovered from the original's domain/models/recovery module.
type ConnectivityResponse struct {
	Status               ConnectivityStatus `json:"status"`
	LastCheckedAt         time.Time          `json:"last_checked_at"`
	Message               string             `json:"message,omitempty"`
	AvailableFeatures     []string           `json:"available_features"`
	RestrictedFeatures    []string           `json:"restricted_features"`
}

// UnfinishedTask describes a task the recovery flow found interrupted
// mid-run (e.g. after a process restart) without a terminal checkpoint.
type UnfinishedTask struct {
	TaskID          string    `json:"task_id"`
	LastCheckpointID string   `json:"last_checkpoint_id"`
	LastState       State     `json:"last_state"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// RecoveryRequest asks the engine facade to resume a task from its most
// recent checkpoint.
type RecoveryRequest struct {
	TaskID string `json:"task_id"`
}

// RecoveryResponse reports the outcome of a recovery attempt.
type RecoveryResponse struct {
	TaskID        string  `json:"task_id"`
	Recovered     bool    `json:"recovered"`
	CheckpointID  string  `json:"checkpoint_id,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
}

// RecoveryMetrics tracks how many recovery attempts a task has undergone
// and their outcomes.
type RecoveryMetrics struct {
	TaskID           string `json:"task_id"`
	AttemptCount     uint32 `json:"attempt_count"`
	SuccessfulCount  uint32 `json:"successful_count"`
	LastAttemptAt    *time.Time `json:"last_attempt_at,omitempty"`
}

// CheckpointSummary is a compact read-model over a Checkpoint for listing
// endpoints.
type CheckpointSummary struct {
	ID        string          `json:"id"`
	Iteration uint32          `json:"iteration"`
	State     State           `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	Archived  bool            `json:"archived"`
	PassRate  *PassRateSummary `json:"pass_rate,omitempty"`
}

// CheckpointWithSummary pairs a full checkpoint with its compact summary,
// used where callers want both the detail and the list-friendly shape
// without recomputing it.
type CheckpointWithSummary struct {
	Checkpoint Checkpoint        `json:"checkpoint"`
	Summary    CheckpointSummary `json:"summary"`
}

// RollbackRequest is the body of POST /tasks/{id}/rollback.
type RollbackRequest struct {
	CheckpointID string `json:"checkpoint_id"`
	Confirm      bool   `json:"confirm"`
}

// RollbackResponse reports the outcome of a rollback.
type RollbackResponse struct {
	NewBranchID   string `json:"new_branch_id"`
	ArchivedCount int    `json:"archived_count"`
}
