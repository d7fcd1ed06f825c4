// Package api is the HTTP transport over the task lifecycle manager and
// the Optimization Engine Facade, using Echo v5 exactly as the teacher's
// pkg/api, grounded on its Server/NewServer/setupRoutes/Start/Shutdown
// structure.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/codeready-toolchain/promptforge/pkg/auth"
	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/config"
	"github.com/codeready-toolchain/promptforge/pkg/connectivity"
	"github.com/codeready-toolchain/promptforge/pkg/database"
	"github.com/codeready-toolchain/promptforge/pkg/tasks"
	"github.com/codeready-toolchain/promptforge/pkg/wsbus"
)

// Server is the HTTP API server. Every collaborator is load-bearing and
// supplied at construction, unlike the teacher's optional Set*-wired
// services — there is no disabled-feature path in this domain.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg           *config.Config
	dbClient      *database.Client
	taskManager   *tasks.Manager
	checkpoints   *checkpoint.Manager
	sentinel      *connectivity.Sentinel
	sessions      *auth.SessionStore
	loginAttempts *auth.LoginAttemptStore
	users         *database.UserRepository
	bus           *wsbus.Bus
}

// NewServer creates a new API server with Echo v5, wires the standard
// middleware chain, and registers every route.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	taskManager *tasks.Manager,
	checkpoints *checkpoint.Manager,
	sentinel *connectivity.Sentinel,
	sessions *auth.SessionStore,
	loginAttempts *auth.LoginAttemptStore,
	users *database.UserRepository,
	bus *wsbus.Bus,
) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		cfg:           cfg,
		dbClient:      dbClient,
		taskManager:   taskManager,
		checkpoints:   checkpoints,
		sentinel:      sentinel,
		sessions:      sessions,
		loginAttempts: loginAttempts,
		users:         users,
		bus:           bus,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(correlationID())
	if len(s.cfg.CORSOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.cfg.CORSOrigins,
		}))
	}

	s.echo.GET("/health", s.healthHandler)

	authGroup := s.echo.Group("/auth")
	authGroup.POST("/login", s.loginHandler)
	authGroup.POST("/logout", s.logoutHandler, bearerAuth(s.sessions))

	meta := s.echo.Group("/meta", bearerAuth(s.sessions))
	meta.GET("/iteration-stages", s.iterationStagesHandler)
	meta.GET("/checkpoint-metrics", s.checkpointMetricsHandler)

	s.echo.GET("/connectivity", s.connectivityHandler, bearerAuth(s.sessions))

	tasksGroup := s.echo.Group("/tasks", bearerAuth(s.sessions))
	tasksGroup.POST("", s.createTaskHandler)
	tasksGroup.GET("", s.listTasksHandler)
	tasksGroup.GET("/:id", s.getTaskHandler)
	tasksGroup.GET("/:id/candidates", s.candidatesHandler)
	tasksGroup.POST("/:id/pause", s.pauseTaskHandler)
	tasksGroup.POST("/:id/resume", s.resumeTaskHandler)
	tasksGroup.POST("/:id/rollback", s.rollbackTaskHandler)
	tasksGroup.POST("/:id/add-rounds", s.addRoundsHandler)
	tasksGroup.POST("/:id/terminate", s.terminateTaskHandler)

	s.echo.GET("/ws", s.wsHandler, bearerAuth(s.sessions))
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.echo,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
