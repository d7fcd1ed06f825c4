// Package api is the HTTP transport over the Optimization Engine Facade,
// using Echo v5 exactly as the teacher's pkg/api, grounded on its
// Server/NewServer/setupRoutes/Start/Shutdown structure.
package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// Meta carries pagination info alongside a successful list response.
type Meta struct {
	Page     int   `json:"page,omitempty"`
	PageSize int   `json:"page_size,omitempty"`
	Total    int64 `json:"total,omitempty"`
}

// successEnvelope is the { data, meta? } success shape, grounded on
// original_source/backend/src/api/response.rs's ApiSuccess.
type successEnvelope struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// errorDetail is the { code, message, details? } error shape, grounded on
// original_source/backend/src/api/response.rs's ErrorDetail.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

// ok writes a 200 success envelope with no pagination meta.
func ok(c *echo.Context, data any) error {
	return c.JSON(http.StatusOK, successEnvelope{Data: data})
}

// okWithMeta writes a 200 success envelope including pagination meta.
func okWithMeta(c *echo.Context, data any, meta Meta) error {
	return c.JSON(http.StatusOK, successEnvelope{Data: data, Meta: &meta})
}

// created writes a 201 success envelope.
func created(c *echo.Context, data any) error {
	return c.JSON(http.StatusCreated, successEnvelope{Data: data})
}

// errResponse writes the unified error envelope at the given status.
func errResponse(c *echo.Context, status int, code, message string) error {
	return c.JSON(status, errorEnvelope{Error: errorDetail{Code: code, Message: message}})
}
