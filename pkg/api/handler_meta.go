package api

import (
	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/promptforge/pkg/orchestrator"
)

// iterationStagesHandler handles GET /meta/iteration-stages, exposing the
// backend-owned state -> group/label/order table so the frontend never
// re-derives it.
func (s *Server) iterationStagesHandler(c *echo.Context) error {
	return ok(c, orchestrator.Stages)
}

// checkpointMetricsHandler handles GET /meta/checkpoint-metrics.
func (s *Server) checkpointMetricsHandler(c *echo.Context) error {
	return ok(c, s.checkpoints.Metrics())
}
