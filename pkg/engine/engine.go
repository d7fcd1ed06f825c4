// Package engine provides the Optimization Engine Facade: it wires the
// seven pluggable layer traits to a concrete implementation per task
// config and exposes Run/Resume, grounded on spec §4.8; collaborators are
// required constructor arguments rather than the teacher's
// pkg/api/server.go Set* + ValidateWiring() pattern.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/connectivity"
	"github.com/codeready-toolchain/promptforge/pkg/diversity"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/layers/aggregator"
	"github.com/codeready-toolchain/promptforge/pkg/layers/evaluator"
	"github.com/codeready-toolchain/promptforge/pkg/layers/executiontarget"
	"github.com/codeready-toolchain/promptforge/pkg/layers/optimizer"
	"github.com/codeready-toolchain/promptforge/pkg/layers/promptgenerator"
	"github.com/codeready-toolchain/promptforge/pkg/layers/ruleengine"
	"github.com/codeready-toolchain/promptforge/pkg/layers/teacher"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/orchestrator"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
	"github.com/codeready-toolchain/promptforge/pkg/wsbus"
)

// Engine is the facade tying orchestrator.Orchestrator and its
// collaborators together for cmd/ and pkg/api to call. Collaborators are
// required constructor arguments rather than Set* calls, since — unlike
// the teacher's optional MCP/chat services — every one of these is load
// bearing for every task the engine runs.
type Engine struct {
	Checkpoints  *checkpoint.Manager
	History      *history.Recorder
	Pause        *pause.Registry
	Bus          *wsbus.Bus
	Sentinel     *connectivity.Sentinel
	TeacherDelay time.Duration // from PROMPT_FASTER_TEACHER_MODEL_DELAY_MS

	// DiversityBaselines is optional; nil disables baseline comparison
	// and recording even for tasks that opt into Config.Diversity.
	DiversityBaselines orchestrator.DiversityBaselineStore

	mu              sync.Mutex
	recoveryMetrics map[string]*models.RecoveryMetrics
}

// New builds an Engine. teacherDelay configures the Example teacher
// model's simulated latency, used to exercise timeout/cancellation paths
// without a real upstream teacher service. diversityBaselines may be nil.
func New(checkpoints *checkpoint.Manager, recorder *history.Recorder, pauseReg *pause.Registry, bus *wsbus.Bus, sentinel *connectivity.Sentinel, teacherDelay time.Duration, diversityBaselines orchestrator.DiversityBaselineStore) *Engine {
	return &Engine{
		Checkpoints:        checkpoints,
		History:            recorder,
		Pause:              pauseReg,
		Bus:                bus,
		Sentinel:           sentinel,
		TeacherDelay:       teacherDelay,
		DiversityBaselines: diversityBaselines,
		recoveryMetrics:    make(map[string]*models.RecoveryMetrics),
	}
}

// buildOrchestrator selects concrete trait implementations per cfg,
// per spec §4.8: RuleEngine/PromptGenerator/FeedbackAggregator/Optimizer
// are always the default implementations; ExecutionTarget follows
// execution_target_type; Evaluator follows evaluator_kind.
func (e *Engine) buildOrchestrator(cfg models.TaskConfig) (*orchestrator.Orchestrator, error) {
	var execTarget layers.ExecutionTarget
	switch cfg.ExecutionTargetType {
	case models.ExecutionTargetExample, "":
		execTarget = executiontarget.New()
	case models.ExecutionTargetDify, models.ExecutionTargetGeneric:
		execTarget = executiontarget.NewHTTP(e.Sentinel)
	default:
		return nil, apperrors.Validation("ENGINE_UNKNOWN_EXECUTION_TARGET",
			fmt.Sprintf("unknown execution_target_type %q", cfg.ExecutionTargetType))
	}

	var eval layers.Evaluator
	switch cfg.EvaluatorKind {
	case "Default", "":
		eval = evaluator.NewTeacherJudge(e.teacherModel())
	case "Example":
		eval = evaluator.New()
	default:
		return nil, apperrors.Validation("ENGINE_UNKNOWN_EVALUATOR_KIND",
			fmt.Sprintf("unknown evaluator_kind %q", cfg.EvaluatorKind))
	}

	return &orchestrator.Orchestrator{
		RuleEngine:      ruleengine.New(),
		PromptGenerator: promptgenerator.New(),
		Evaluator:       eval,
		Aggregator:      aggregator.New(),
		Optimizer:       optimizer.New(),
		ExecutionTarget: execTarget,

		Checkpoints: e.Checkpoints,
		History:     e.History,
		Pause:       e.Pause,
		Bus:         e.Bus,

		Diversity:          diversity.New(func() string { return time.Now().UTC().Format(time.RFC3339) }),
		DiversityBaselines: e.DiversityBaselines,
	}, nil
}

func (e *Engine) teacherModel() layers.TeacherModel {
	model := teacher.NewExampleDefault()
	if e.TeacherDelay > 0 {
		return model.WithDelay(e.TeacherDelay)
	}
	return model
}

// DefaultStallThreshold backstops a zero-value StallThreshold: the
// Optimizer only escapes a non-improving run to HumanIntervention once
// consecutive_no_improvement exceeds the threshold, so a task config that
// never sets one would otherwise loop until MaxIterations purely on
// never-adopted iterations, without ever incrementing Iteration.
const DefaultStallThreshold = 3

func normalizeConfig(cfg models.TaskConfig) models.TaskConfig {
	if cfg.StallThreshold == 0 {
		cfg.StallThreshold = DefaultStallThreshold
	}
	return cfg
}

// Run drives a fresh task (State==Idle) to a terminal state and returns
// an OptimizationResult summarizing the outcome.
func (e *Engine) Run(ctx context.Context, optCtx *models.OptimizationContext, correlationID string) (models.OptimizationResult, error) {
	optCtx.Config = normalizeConfig(optCtx.Config)
	orch, err := e.buildOrchestrator(optCtx.Config)
	if err != nil {
		return models.OptimizationResult{}, err
	}

	runErr := orch.Run(ctx, optCtx, correlationID)
	result := models.OptimizationResult{
		TaskID:        optCtx.TaskID,
		FinalState:    optCtx.State,
		Iteration:     optCtx.Iteration,
		CurrentPrompt: optCtx.CurrentPrompt,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result, runErr
}

// Resume restores an OptimizationContext from a checkpoint (verifying its
// integrity first), increments the task's recovery-attempt counter, runs
// one iteration, and records success only once that iteration completes
// without error — matching spec §4.7's resume-from-checkpoint contract.
func (e *Engine) Resume(ctx context.Context, cp models.Checkpoint, cfg models.TaskConfig, testCases []models.TestCase, correlationID string) (models.OptimizationResult, error) {
	if !cp.IntegrityOK {
		return models.OptimizationResult{}, apperrors.New(apperrors.KindIntegrity, "CHECKPOINT_CORRUPTED", "checkpoint failed integrity check, cannot resume")
	}

	e.recordRecoveryAttempt(cp.TaskID)
	cfg = normalizeConfig(cfg)

	optCtx := &models.OptimizationContext{
		TaskID:          cp.TaskID,
		CurrentPrompt:   cp.Prompt,
		RuleSystem:      cp.RuleSystem,
		Iteration:       cp.Iteration,
		State:           cp.State,
		RunControlState: models.RunControlRunning,
		TestCases:       testCases,
		Config:          cfg,
		Extensions:      map[string]any{},
	}
	if optCtx.RuleSystem == nil {
		optCtx.RuleSystem = models.NewRuleSystem()
	}
	if cp.UserGuidance != "" {
		optCtx.Extensions["user_guidance"] = cp.UserGuidance
	}
	if cp.BranchID != "" {
		optCtx.Extensions["checkpoint.branch_id"] = cp.BranchID
	}

	orch, err := e.buildOrchestrator(cfg)
	if err != nil {
		return models.OptimizationResult{}, err
	}

	runErr := orch.RunIteration(ctx, optCtx, correlationID)
	if runErr == nil {
		e.recordRecoverySuccess(cp.TaskID)
	}

	result := models.OptimizationResult{
		TaskID:        optCtx.TaskID,
		FinalState:    optCtx.State,
		Iteration:     optCtx.Iteration,
		CurrentPrompt: optCtx.CurrentPrompt,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result, runErr
}

// RecoveryMetrics returns a snapshot of taskID's recovery attempt/success
// counters, or the zero value if it has never been resumed.
func (e *Engine) RecoveryMetrics(taskID string) models.RecoveryMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.recoveryMetrics[taskID]; ok {
		return *m
	}
	return models.RecoveryMetrics{TaskID: taskID}
}

func (e *Engine) recordRecoveryAttempt(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.recoveryMetrics[taskID]
	if !ok {
		m = &models.RecoveryMetrics{TaskID: taskID}
		e.recoveryMetrics[taskID] = m
	}
	m.AttemptCount++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (e *Engine) recordRecoverySuccess(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m, ok := e.recoveryMetrics[taskID]; ok {
		m.SuccessfulCount++
	}
}
