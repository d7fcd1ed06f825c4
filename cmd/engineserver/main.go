// Command engineserver runs the Iteration Engine HTTP/WebSocket API:
// task lifecycle management, checkpointing, connectivity monitoring, and
// bearer-token auth, backed by PostgreSQL.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/api"
	"github.com/codeready-toolchain/promptforge/pkg/auth"
	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/config"
	"github.com/codeready-toolchain/promptforge/pkg/connectivity"
	"github.com/codeready-toolchain/promptforge/pkg/database"
	"github.com/codeready-toolchain/promptforge/pkg/engine"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
	"github.com/codeready-toolchain/promptforge/pkg/tasks"
	"github.com/codeready-toolchain/promptforge/pkg/wsbus"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("error closing database client", "error", err)
		}
	}()
	logger.Info("connected to database, migrations applied")

	pauseReg := pause.NewRegistry()
	recorder := history.NewRecorder(database.NewHistoryRepository(dbClient), pauseReg)
	checkpoints := checkpoint.New(
		database.NewCheckpointRepository(dbClient),
		recorder,
		pauseReg,
		cfg.CheckpointCacheLimit,
		cfg.CheckpointMemoryAlertThreshold,
	)
	sentinel := connectivity.New(cfg.ConnectivityProbeURL)

	sessions := auth.NewSessionStore(cfg.SessionTTL)
	loginAttempts := auth.NewLoginAttemptStore(cfg.LoginMaxFailures, cfg.LoginCooldown)
	users := database.NewUserRepository(dbClient)

	cleanup := auth.NewCleanupService(sessions, loginAttempts, auth.DefaultCleanupInterval)
	cleanup.Start(ctx)
	defer cleanup.Stop()

	bus := wsbus.New()
	eng := engine.New(checkpoints, recorder, pauseReg, bus, sentinel, cfg.TeacherModelDelay,
		database.NewDiversityBaselineRepository(dbClient))
	taskManager := tasks.New(database.NewTaskRepository(dbClient), eng, checkpoints, recorder, pauseReg)

	server := api.NewServer(&cfg, dbClient, taskManager, checkpoints, sentinel, sessions, loginAttempts, users, bus)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Addr())
		if err := server.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err)
	}
}
