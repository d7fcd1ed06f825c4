package models

import "time"

// ExecutionTargetType selects which ExecutionTarget implementation a task
// uses. Example is this build's addition alongside the original Dify and
// Generic kinds, since the concrete, testable implementation the spec
// requires is the deterministic example target.
type ExecutionTargetType string

const (
	ExecutionTargetDify    ExecutionTargetType = "Dify"
	ExecutionTargetGeneric ExecutionTargetType = "Generic"
	ExecutionTargetExample ExecutionTargetType = "Example"
)

// OptimizationTaskMode selects how aggressively the Optimizer explores
// candidate prompts.
type OptimizationTaskMode string

const (
	ModeFixed    OptimizationTaskMode = "Fixed"
	ModeCreative OptimizationTaskMode = "Creative"
)

// OptimizationTaskStatus is the coarse lifecycle status of a task, distinct
// from the finer-grained iteration State.
type OptimizationTaskStatus string

const (
	TaskStatusDraft     OptimizationTaskStatus = "Draft"
	TaskStatusRunning   OptimizationTaskStatus = "Running"
	TaskStatusSuspended OptimizationTaskStatus = "Suspended"
	TaskStatusFinished  OptimizationTaskStatus = "Finished"
)

// Workspace is the first isolation boundary a task is created under. The
// core engine does not enforce workspace semantics (no multi-tenant
// scheduling); it exists so the ambient HTTP layer can filter by it.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// User owns tasks within a workspace and authenticates against
// pkg/auth.SessionStore.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// OptimizationTaskEntity is the persisted, workspace/user-scoped wrapper
// around a running optimization task. The engine itself only knows about
// OptimizationContext; this entity is the ambient-layer record a task's
// HTTP lifecycle is built around.
type OptimizationTaskEntity struct {
	ID                  string                 `json:"id"`
	WorkspaceID         string                 `json:"workspace_id"`
	CreatedByUserID     string                 `json:"created_by_user_id"`
	Goal                string                 `json:"goal"`
	Mode                OptimizationTaskMode   `json:"mode"`
	Status              OptimizationTaskStatus `json:"status"`
	ExecutionTargetType ExecutionTargetType    `json:"execution_target_type"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}
