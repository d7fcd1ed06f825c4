package api

import (
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/auth"
	"github.com/codeready-toolchain/promptforge/pkg/database"
)

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is returned on a successful login.
type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// loginHandler handles POST /auth/login. Every failure path — unknown
// username, bad password, or an IP/username pair currently throttled —
// returns the same opaque 401, matching bearerAuth's uniform contract.
func (s *Server) loginHandler(c *echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, correlationIDFromContext(c), apperrors.Validation("AUTH_MALFORMED_REQUEST", "request body could not be parsed"))
	}

	key := auth.MakeKey(c.RealIP(), req.Username)
	if s.loginAttempts.IsBlocked(key) {
		return writeError(c, correlationIDFromContext(c), apperrors.Unauthorized())
	}

	user, err := s.users.GetUserByUsername(c.Request().Context(), req.Username)
	if err != nil {
		if err != database.ErrUserNotFound {
			return writeError(c, correlationIDFromContext(c), apperrors.Internal("AUTH_USER_LOOKUP_FAILED", err))
		}
		s.loginAttempts.RecordFailure(key)
		return writeError(c, correlationIDFromContext(c), apperrors.Unauthorized())
	}

	valid, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !valid {
		s.loginAttempts.RecordFailure(key)
		return writeError(c, correlationIDFromContext(c), apperrors.Unauthorized())
	}

	session, err := s.sessions.Issue(user.ID, user.Username)
	if err != nil {
		return writeError(c, correlationIDFromContext(c), err)
	}
	s.loginAttempts.Reset(key)

	return ok(c, loginResponse{Token: session.Token, Username: session.Username})
}

// logoutHandler handles POST /auth/logout.
func (s *Server) logoutHandler(c *echo.Context) error {
	if token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer "); ok {
		s.sessions.Revoke(token)
	}
	return ok(c, map[string]bool{"revoked": true})
}
