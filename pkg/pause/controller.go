// Package pause implements the Pause Controller Registry: a process-wide
// mapping from task id to per-task cooperative pause/resume state, modeled
// on the teacher's pkg/session.Manager get-or-create-by-id map pattern.
package pause

import (
	"fmt"
	"sync"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// Controller holds one task's cooperative pause/resume state. All methods
// are safe for concurrent callers.
type Controller struct {
	mu                sync.RWMutex
	runControlState   models.RunControlState
	lastCorrelationID string
	guidance          string
	snapshot          *models.OptimizationContext
}

func newController() *Controller {
	return &Controller{runControlState: models.RunControlRunning}
}

// IsPauseRequested reports whether the task's run-control-state currently
// requests a pause. Read-only; safe to call without holding any other lock.
func (c *Controller) IsPauseRequested() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runControlState == models.RunControlPauseRequested
}

// RunControlState returns the controller's current run-control-state.
func (c *Controller) RunControlState() models.RunControlState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runControlState
}

// GetLastCorrelationID returns the most recent correlation id observed by
// the controller. Wait-free with respect to other readers.
func (c *Controller) GetLastCorrelationID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCorrelationID
}

// RequestPause sets PauseRequested; idempotent, and records correlationID
// as "last" regardless of the previous state.
func (c *Controller) RequestPause(correlationID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCorrelationID = correlationID
	if c.runControlState == models.RunControlRunning {
		c.runControlState = models.RunControlPauseRequested
	}
}

// CheckpointPause atomically transitions PauseRequested -> Paused, storing
// the snapshot, and reports whether the transition happened. Called from
// within the orchestrator at a safe suspension point.
func (c *Controller) CheckpointPause(correlationID string, snapshot *models.OptimizationContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runControlState != models.RunControlPauseRequested {
		return false
	}
	c.runControlState = models.RunControlPaused
	c.snapshot = snapshot
	if correlationID != "" {
		c.lastCorrelationID = correlationID
	}
	return true
}

// UpdateGuidance stores guidance text; allowed only while Paused.
func (c *Controller) UpdateGuidance(text, correlationID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runControlState != models.RunControlPaused {
		return fmt.Errorf("guidance can only be updated while paused")
	}
	c.guidance = text
	if correlationID != "" {
		c.lastCorrelationID = correlationID
	}
	return nil
}

// Guidance returns the currently stored guidance text.
func (c *Controller) Guidance() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guidance
}

// RequestTermination forces the task to Terminated regardless of its
// current run-control-state (Running, PauseRequested, Paused, or
// Resuming), for POST /tasks/{id}/terminate. The orchestrator observes
// this at its next phase boundary and transitions to UserStopped.
func (c *Controller) RequestTermination(correlationID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCorrelationID = correlationID
	c.runControlState = models.RunControlTerminated
}

// Resume transitions Paused -> Resuming; the orchestrator completes the
// transition to Running once it picks the task back up.
func (c *Controller) Resume(correlationID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runControlState != models.RunControlPaused {
		return fmt.Errorf("cannot resume: not paused")
	}
	c.runControlState = models.RunControlResuming
	if correlationID != "" {
		c.lastCorrelationID = correlationID
	}
	return nil
}

// MarkRunning completes a Resuming -> Running transition once the
// orchestrator has picked the task back up.
func (c *Controller) MarkRunning() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runControlState == models.RunControlResuming {
		c.runControlState = models.RunControlRunning
	}
}

// TakeSnapshot returns and clears the stored resume snapshot, if any.
func (c *Controller) TakeSnapshot() *models.OptimizationContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snapshot
	c.snapshot = nil
	return s
}

// Registry is the process-wide map from task id to Controller.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// GetOrCreate returns the single controller instance for taskID, creating
// it on first access.
func (r *Registry) GetOrCreate(taskID string) *Controller {
	r.mu.RLock()
	c, ok := r.controllers[taskID]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.controllers[taskID]; ok {
		return c
	}
	c = newController()
	r.controllers[taskID] = c
	return c
}

// Remove drops a task's controller from the registry, e.g. once the task
// reaches a terminal state.
func (r *Registry) Remove(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, taskID)
}
