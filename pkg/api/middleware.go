package api

import (
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/auth"
	"github.com/codeready-toolchain/promptforge/pkg/ids"
)

// correlationIDHeader is the stable request/response header name threaded
// into every emitted event, grounded on
// original_source/.../middleware/correlation_id.rs's CORRELATION_ID_HEADER.
const correlationIDHeader = "x-correlation-id"

const correlationIDContextKey = "correlation_id"
const currentUserIDContextKey = "current_user_id"

// securityHeaders returns middleware that sets standard security response headers.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			return next(c)
		}
	}
}

// correlationID echoes x-correlation-id request -> response, generating a
// fresh one when absent, so every emitted event can be threaded back to
// its originating request.
func correlationID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			cid := c.Request().Header.Get(correlationIDHeader)
			if cid == "" {
				cid = ids.NewID()
			}
			c.Set(correlationIDContextKey, cid)
			c.Response().Header().Set(correlationIDHeader, cid)
			return next(c)
		}
	}
}

// correlationIDFromContext reads the correlation id correlationID()
// stashed on c, falling back to "unknown" if this request somehow
// bypassed that middleware.
func correlationIDFromContext(c *echo.Context) string {
	if cid, ok := c.Get(correlationIDContextKey).(string); ok && cid != "" {
		return cid
	}
	return "unknown"
}

// bearerAuth validates Authorization: Bearer <token> against sessions and
// stashes the resulting user id on the request context, grounded on
// original_source/.../middleware/auth.rs's auth_middleware. Failures never
// distinguish missing header / malformed scheme / unknown token / expired
// session — a single opaque 401.
func bearerAuth(sessions *auth.SessionStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return writeError(c, correlationIDFromContext(c), apperrors.Unauthorized())
			}

			session, ok := sessions.Validate(token)
			if !ok {
				return writeError(c, correlationIDFromContext(c), apperrors.Unauthorized())
			}

			c.Set(currentUserIDContextKey, session.UserID)
			return next(c)
		}
	}
}

// currentUserID reads the user id bearerAuth stashed on c.
func currentUserID(c *echo.Context) string {
	id, _ := c.Get(currentUserIDContextKey).(string)
	return id
}
