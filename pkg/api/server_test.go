package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/auth"
	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/config"
	"github.com/codeready-toolchain/promptforge/pkg/connectivity"
	"github.com/codeready-toolchain/promptforge/pkg/database"
	"github.com/codeready-toolchain/promptforge/pkg/engine"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
	"github.com/codeready-toolchain/promptforge/pkg/tasks"
	"github.com/codeready-toolchain/promptforge/pkg/wsbus"
)

func newTestDBClient(t *testing.T) *database.Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.DefaultConfig(connStr))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func newTestServer(t *testing.T) *Server {
	client := newTestDBClient(t)

	pauseReg := pause.NewRegistry()
	hist := history.NewRecorder(database.NewHistoryRepository(client), pauseReg)
	ckpt := checkpoint.New(database.NewCheckpointRepository(client), hist, pauseReg, 10, 8)
	eng := engine.New(ckpt, hist, pauseReg, wsbus.New(), nil, 0, database.NewDiversityBaselineRepository(client))
	taskMgr := tasks.New(database.NewTaskRepository(client), eng, ckpt, hist, pauseReg)

	cfg := &config.Config{}
	sentinel := connectivity.New("")
	sessions := auth.NewSessionStore(time.Hour)
	loginAttempts := auth.NewDefaultLoginAttemptStore()
	users := database.NewUserRepository(client)

	return NewServer(cfg, client, taskMgr, ckpt, sentinel, sessions, loginAttempts, users, wsbus.New())
}

func seedUser(t *testing.T, s *Server, username, password string) models.User {
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := models.User{ID: username + "-id", Username: username, PasswordHash: hash, CreatedAt: time.Now()}
	require.NoError(t, s.users.InsertUser(context.Background(), u))
	return u
}

func doRequest(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandlerIsUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
}

func TestLoginLogoutAndProtectedRoutes(t *testing.T) {
	s := newTestServer(t)
	seedUser(t, s, "alice", "hunter2")

	// Missing bearer token is rejected uniformly.
	rec := doRequest(t, s, http.MethodGet, "/meta/iteration-stages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong password is rejected with the same opaque 401.
	rec = doRequest(t, s, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials issue a session.
	rec = doRequest(t, s, http.MethodPost, "/auth/login", "", loginRequest{Username: "alice", Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var loginEnv successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginEnv))
	loginData, _ := loginEnv.Data.(map[string]any)
	token, _ := loginData["token"].(string)
	require.NotEmpty(t, token)

	// Token now unlocks a protected route.
	rec = doRequest(t, s, http.MethodGet, "/meta/iteration-stages", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Logout revokes it.
	rec = doRequest(t, s, http.MethodPost, "/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/meta/iteration-stages", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownUsernameAndThrottledLoginBothReturnUnauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/auth/login", "", loginRequest{Username: "nobody", Password: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Repeated failures for the same ip|username key throttle it: even
	// the correct password is then rejected with the same opaque 401.
	seedUser(t, s, "bob", "hunter2")
	for i := 0; i < auth.DefaultMaxFailures; i++ {
		rec = doRequest(t, s, http.MethodPost, "/auth/login", "", loginRequest{Username: "bob", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec = doRequest(t, s, http.MethodPost, "/auth/login", "", loginRequest{Username: "bob", Password: "hunter2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTaskLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t)
	session, err := s.sessions.Issue("user-1", "alice")
	require.NoError(t, err)
	token := session.Token

	createBody := tasks.CreateTaskRequest{
		WorkspaceID: "ws-1",
		Goal:        "improve answers",
		Config: models.TaskConfig{
			MaxIterations:       2,
			ExecutionTargetType: string(models.ExecutionTargetExample),
		},
		TestCases: []models.TestCase{
			{ID: "tc-1", Input: map[string]any{"q": "hi"}, Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "hi back"}},
		},
	}
	rec := doRequest(t, s, http.MethodPost, "/tasks", token, createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created successEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	entity, _ := created.Data.(map[string]any)
	taskID, _ := entity["id"].(string)
	require.NotEmpty(t, taskID)

	rec = doRequest(t, s, http.MethodGet, "/tasks/"+taskID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/tasks?workspace_id=ws-1", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, s, http.MethodGet, "/tasks/"+taskID+"/candidates", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown task id surfaces as 404, not a 500.
	rec = doRequest(t, s, http.MethodGet, "/tasks/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/tasks/does-not-exist/add-rounds", token, models.AddRoundsRequest{AdditionalRounds: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErrorMapsAppErrorKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperrors.Validation("X", "x"), http.StatusBadRequest},
		{apperrors.Unauthorized(), http.StatusUnauthorized},
		{apperrors.NotFound("X", "x"), http.StatusNotFound},
		{apperrors.Conflict("X", "x"), http.StatusConflict},
		{apperrors.Internal("X", assert.AnError), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		c := e.NewContext(req, rec)
		require.NoError(t, writeError(c, "cid", tc.err))
		assert.Equal(t, tc.status, rec.Code)
	}
}
