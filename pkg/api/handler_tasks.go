package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/tasks"
)

// taskDetailResponse pairs a task's persisted entity with its live
// iteration state when a run is in flight.
type taskDetailResponse struct {
	Task      any `json:"task"`
	Iteration any `json:"iteration,omitempty"`
}

// createTaskHandler handles POST /tasks.
func (s *Server) createTaskHandler(c *echo.Context) error {
	var req tasks.CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, correlationIDFromContext(c), apperrors.Validation("TASK_MALFORMED_REQUEST", "request body could not be parsed"))
	}

	entity, err := s.taskManager.Create(c.Request().Context(), req, currentUserID(c), correlationIDFromContext(c))
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return created(c, entity)
}

// listTasksHandler handles GET /tasks?workspace_id=....
func (s *Server) listTasksHandler(c *echo.Context) error {
	workspaceID := c.QueryParam("workspace_id")
	if workspaceID == "" {
		return writeError(c, correlationIDFromContext(c), apperrors.Validation("TASK_MISSING_WORKSPACE", "workspace_id query parameter is required"))
	}

	list, err := s.taskManager.List(c.Request().Context(), workspaceID)
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return okWithMeta(c, list, Meta{Total: int64(len(list))})
}

// getTaskHandler handles GET /tasks/:id.
func (s *Server) getTaskHandler(c *echo.Context) error {
	entity, optCtx, err := s.taskManager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, taskDetailResponse{Task: entity, Iteration: optCtx})
}

// candidatesHandler handles GET /tasks/:id/candidates.
func (s *Server) candidatesHandler(c *echo.Context) error {
	list, err := s.taskManager.Candidates(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, list)
}
