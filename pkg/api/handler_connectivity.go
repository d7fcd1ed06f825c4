package api

import (
	echo "github.com/labstack/echo/v5"
)

// connectivityHandler handles GET /connectivity, reporting the sentinel's
// cached upstream-reachability status along with which features are
// available or restricted while it holds.
func (s *Server) connectivityHandler(c *echo.Context) error {
	return ok(c, s.sentinel.Status(c.Request().Context()))
}
