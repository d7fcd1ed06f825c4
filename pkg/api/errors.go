package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
)

// writeError maps err to the unified error envelope (§6) and writes it.
// *apperrors.AppError carries its own status/code/message; anything else
// is logged at ERROR with the request's correlation id and rendered as an
// opaque 500 so internals are never leaked to the client.
func writeError(c *echo.Context, correlationID string, err error) error {
	var ae *apperrors.AppError
	if apperrors.As(err, &ae) {
		return errResponse(c, ae.HTTPStatus(), ae.Code, ae.Message)
	}

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		msg, _ := echoErr.Message.(string)
		if msg == "" {
			msg = "request could not be processed"
		}
		return errResponse(c, echoErr.Code, "VALIDATION_ERROR", msg)
	}

	slog.Error("unhandled request error", "correlation_id", correlationID, "error", err)
	return errResponse(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}
