package apperrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, Validation("X", "bad").HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized().HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound("X", "missing").HTTPStatus())
	assert.Equal(t, http.StatusConflict, Conflict("X", "dup").HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Internal("X", nil).HTTPStatus())
}

func TestIsRetriable(t *testing.T) {
	assert.False(t, IsRetriable(Validation("X", "bad")))
	assert.False(t, IsRetriable(Unauthorized()))
	assert.True(t, IsRetriable(New(KindUpstreamExecution, "EXEC_TIMEOUT", "timed out")))
	assert.True(t, IsRetriable(errors.New("plain network error")))
}

func TestUnauthorizedIsUniform(t *testing.T) {
	a := Unauthorized()
	b := Unauthorized()
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Message, b.Message)
}
