package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// pauseTaskHandler handles POST /tasks/:id/pause.
func (s *Server) pauseTaskHandler(c *echo.Context) error {
	taskID := c.Param("id")
	if err := s.taskManager.Pause(taskID, correlationIDFromContext(c), currentUserID(c)); err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, map[string]string{"task_id": taskID, "run_control_state": string(models.RunControlPauseRequested)})
}

// resumeTaskHandler handles POST /tasks/:id/resume.
func (s *Server) resumeTaskHandler(c *echo.Context) error {
	taskID := c.Param("id")
	if err := s.taskManager.Resume(taskID, correlationIDFromContext(c), currentUserID(c)); err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, map[string]string{"task_id": taskID, "run_control_state": string(models.RunControlResuming)})
}

// rollbackTaskHandler handles POST /tasks/:id/rollback.
func (s *Server) rollbackTaskHandler(c *echo.Context) error {
	var req models.RollbackRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, correlationIDFromContext(c), apperrors.Validation("ROLLBACK_MALFORMED_REQUEST", "request body could not be parsed"))
	}

	resp, err := s.taskManager.Rollback(c.Request().Context(), c.Param("id"), req, correlationIDFromContext(c), currentUserID(c))
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, resp)
}

// addRoundsHandler handles POST /tasks/:id/add-rounds.
func (s *Server) addRoundsHandler(c *echo.Context) error {
	var req models.AddRoundsRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, correlationIDFromContext(c), apperrors.Validation("TASK_ADD_ROUNDS_MALFORMED_REQUEST", "request body could not be parsed"))
	}

	resp, err := s.taskManager.AddRounds(c.Request().Context(), c.Param("id"), req, correlationIDFromContext(c))
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, resp)
}

// terminateTaskHandler handles POST /tasks/:id/terminate.
func (s *Server) terminateTaskHandler(c *echo.Context) error {
	var req models.TerminateTaskRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, correlationIDFromContext(c), apperrors.Validation("TASK_TERMINATE_MALFORMED_REQUEST", "request body could not be parsed"))
	}

	resp, err := s.taskManager.Terminate(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	return ok(c, resp)
}
