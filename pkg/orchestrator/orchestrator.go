package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/checkpoint"
	"github.com/codeready-toolchain/promptforge/pkg/diversity"
	"github.com/codeready-toolchain/promptforge/pkg/extkeys"
	"github.com/codeready-toolchain/promptforge/pkg/history"
	"github.com/codeready-toolchain/promptforge/pkg/ids"
	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/codeready-toolchain/promptforge/pkg/pause"
	"github.com/codeready-toolchain/promptforge/pkg/wsbus"
)

// SafetyPassRateFloor is the minimum pass rate a committed candidate must
// hold during SafetyChecking; falling below it fails the task rather than
// silently continuing with an unsafe prompt.
const SafetyPassRateFloor = 0.5

// pausePollInterval bounds how often checkPause re-checks the controller
// while a task sits in WaitingUser.
const pausePollInterval = 50 * time.Millisecond

// Orchestrator drives one OptimizationContext through the iteration state
// machine, wiring six of the layer traits (TeacherModel is reached only
// through an Evaluator) plus the checkpoint, history,
// pause, and event-bus collaborators.
type Orchestrator struct {
	RuleEngine      layers.RuleEngine
	PromptGenerator layers.PromptGenerator
	Evaluator       layers.Evaluator
	Aggregator      layers.FeedbackAggregator
	Optimizer       layers.Optimizer
	ExecutionTarget layers.ExecutionTarget

	Checkpoints *checkpoint.Manager
	History     *history.Recorder
	Pause       *pause.Registry
	Bus         *wsbus.Bus

	// Diversity and DiversityBaselines are optional; when either is nil,
	// analyzeDiversity is a no-op regardless of a task's Config.Diversity.
	Diversity          diversity.Analyzer
	DiversityBaselines DiversityBaselineStore
}

// DiversityBaselineStore persists each task's first recorded diversity
// snapshot. Implemented by pkg/database against Postgres.
type DiversityBaselineStore interface {
	GetByTaskID(ctx context.Context, taskID string) (models.DiversityBaseline, bool, error)
	InsertIfAbsent(ctx context.Context, id, taskID string, metrics models.DiversityMetrics, iteration uint32) error
}

// candidateRun pairs a generated prompt with its execution/evaluation
// results for one iteration.
type candidateRun struct {
	prompt  string
	results []models.ExecutionResult
	evals   []models.EvaluationResult
	fb      models.AggregatedFeedback
}

// RunIteration executes exactly one iteration pass without looping on to
// a terminal state, used by the Engine Facade's crash-recovery Resume
// path (spec §4.7 "resume-from-checkpoint"), which counts one
// successfully completed iteration as recovery success rather than
// driving the task all the way to completion.
func (o *Orchestrator) RunIteration(ctx context.Context, optCtx *models.OptimizationContext, correlationID string) error {
	seedTestResults(optCtx)
	if optCtx.State == models.StateIdle {
		o.transition(ctx, optCtx, correlationID, models.StateInitializing)
	}
	if suspended, err := o.checkPause(ctx, optCtx, correlationID); err != nil {
		return err
	} else if suspended {
		return o.RunIteration(ctx, optCtx, correlationID)
	}
	return o.runOneIteration(ctx, optCtx, correlationID)
}

// Run drives optCtx from its current state to a terminal state (or until
// ctx is cancelled), checking for pause at every phase boundary listed in
// spec §4.7.
func (o *Orchestrator) Run(ctx context.Context, optCtx *models.OptimizationContext, correlationID string) error {
	seedTestResults(optCtx)
	if optCtx.State == models.StateIdle {
		o.transition(ctx, optCtx, correlationID, models.StateInitializing)
		iter := optCtx.Iteration
		o.recordAsync(ctx, optCtx, models.EventIterationStarted, models.ActorSystem, nil, &iter, correlationID)
	}

	for {
		if optCtx.State.IsTerminal() {
			return nil
		}

		if suspended, err := o.checkPause(ctx, optCtx, correlationID); err != nil {
			return err
		} else if suspended {
			continue
		}

		if err := o.runOneIteration(ctx, optCtx, correlationID); err != nil {
			var ae *apperrors.AppError
			if apperrors.As(err, &ae) && ae.Code == "OPTIMIZER_STALLED" {
				o.transition(ctx, optCtx, correlationID, models.StateHumanIntervention)
				return nil
			}
			o.transition(ctx, optCtx, correlationID, models.StateFailed)
			iter := optCtx.Iteration
			o.recordAsync(ctx, optCtx, models.EventErrorOccurred, models.ActorSystem,
				map[string]any{"error": err.Error()}, &iter, correlationID)
			return err
		}

		if optCtx.RuleSystem != nil && optCtx.RuleSystem.AllPassed() {
			o.transition(ctx, optCtx, correlationID, models.StateCompleted)
			iter := optCtx.Iteration
			o.recordAsync(ctx, optCtx, models.EventTaskCompleted, models.ActorSystem, nil, &iter, correlationID)
			return nil
		}
		if optCtx.Iteration >= optCtx.Config.MaxIterations {
			o.transition(ctx, optCtx, correlationID, models.StateMaxIterationsReached)
			return nil
		}
	}
}

// runOneIteration executes one full pass through the rule, prompt,
// execution, evaluation, and optimization phases.
func (o *Orchestrator) runOneIteration(ctx context.Context, optCtx *models.OptimizationContext, correlationID string) error {
	phases := []struct {
		state models.State
		fn    func(context.Context, *models.OptimizationContext) error
	}{
		{models.StateExtractingRules, o.RuleEngine.ExtractRules},
		{models.StateDetectingConflicts, o.RuleEngine.DetectConflicts},
		{models.StateResolvingConflicts, o.resolveConflicts},
		{models.StateMergingSimilarRules, o.RuleEngine.MergeSimilarRules},
		{models.StateValidatingRules, o.validateRules},
	}
	for _, p := range phases {
		if suspended, err := o.checkPause(ctx, optCtx, correlationID); err != nil {
			return err
		} else if suspended {
			return o.runOneIteration(ctx, optCtx, correlationID)
		}
		o.transition(ctx, optCtx, correlationID, p.state)
		if err := p.fn(ctx, optCtx); err != nil {
			return err
		}
	}

	o.transition(ctx, optCtx, correlationID, models.StateGeneratingPrompt)
	candidates, err := o.generateCandidates(ctx, optCtx)
	if err != nil {
		if layers.IsAllPassed(err) {
			return nil
		}
		return err
	}

	o.analyzeDiversity(ctx, optCtx, candidates)

	o.transition(ctx, optCtx, correlationID, models.StateRunningTests)
	runs, err := o.executeCandidates(ctx, optCtx, candidates)
	if err != nil {
		return err
	}

	o.transition(ctx, optCtx, correlationID, models.StateEvaluating)
	if err := o.evaluateCandidates(ctx, optCtx, runs); err != nil {
		return err
	}

	o.transition(ctx, optCtx, correlationID, models.StateClusteringFailures)
	o.clusterFailures(optCtx, runs)

	o.transition(ctx, optCtx, correlationID, models.StateReflecting)
	// Reflection has no dedicated trait call in this build; the phase exists
	// so its WS/history boundary is visible to observers, and so a future
	// TeacherModel-backed summarizer has a slot to plug into.

	o.transition(ctx, optCtx, correlationID, models.StateUpdatingRules)
	if err := o.RuleEngine.ExtractRules(ctx, optCtx); err != nil {
		return err
	}

	o.transition(ctx, optCtx, correlationID, models.StateOptimizing)
	if err := o.optimize(ctx, optCtx, runs); err != nil {
		return err
	}

	adopted, _ := optCtx.Extensions[extkeys.AdoptBestCandidate].(bool)
	if adopted {
		best, _ := optCtx.Extensions["layer4.best_candidate_prompt"].(string)
		optCtx.CurrentPrompt = best
		optCtx.Iteration++
		optCtx.Extensions[extkeys.ConsecutiveNoImprovement] = uint32(0)
		if o.Checkpoints != nil {
			if _, err := o.Checkpoints.Save(ctx, optCtx, models.LineageAutomatic, "", "", correlationID, ""); err != nil {
				slog.Warn("checkpoint save failed after iteration commit", "task_id", optCtx.TaskID, "error", err)
			}
		}
	} else {
		count, _ := optCtx.Extensions[extkeys.ConsecutiveNoImprovement].(uint32)
		optCtx.Extensions[extkeys.ConsecutiveNoImprovement] = count + 1
	}

	if optCtx.Config.SmartRetestingEnabled {
		o.transition(ctx, optCtx, correlationID, models.StateSmartRetesting)
		if err := o.smartRetest(ctx, optCtx); err != nil {
			return err
		}
	}
	if optCtx.Config.SafetyCheckingEnabled {
		o.transition(ctx, optCtx, correlationID, models.StateSafetyChecking)
		if err := o.safetyCheck(ctx, optCtx); err != nil {
			return err
		}
	}

	optCtx.Extensions[extkeys.UserGuidance] = ""

	var details map[string]any
	if result, ok := optCtx.Extensions[extkeys.DiversityAnalysis].(models.DiversityAnalysisResult); ok {
		details = map[string]any{"diversity": result}
	}

	iter := optCtx.Iteration
	o.recordAsync(ctx, optCtx, models.EventIterationCompleted, models.ActorSystem, details, &iter, correlationID)
	return nil
}

// analyzeDiversity scores how much this iteration's generated candidates
// differ from one another, when a task has opted in via
// Config.Diversity.Enabled and more than one variant was generated.
// Grounded on the original implementation's core::diversity_analyzer;
// the result rides inside EventIterationCompleted's details map rather
// than a new HistoryEvent kind, since that enum is closed at 13.
func (o *Orchestrator) analyzeDiversity(ctx context.Context, optCtx *models.OptimizationContext, candidates []string) {
	cfg := optCtx.Config.Diversity
	if o.Diversity == nil || !cfg.Enabled || len(candidates) < 2 {
		return
	}

	var baseline *models.DiversityMetrics
	if o.DiversityBaselines != nil {
		if b, found, err := o.DiversityBaselines.GetByTaskID(ctx, optCtx.TaskID); err != nil {
			slog.Warn("diversity baseline lookup failed", "task_id", optCtx.TaskID, "error", err)
		} else if found {
			baseline = &b.Metrics
		}
	}

	result := o.Diversity.Analyze(candidates, baseline, cfg)
	optCtx.Extensions[extkeys.DiversityAnalysis] = result

	if o.DiversityBaselines != nil {
		if err := o.DiversityBaselines.InsertIfAbsent(ctx, ids.NewID(), optCtx.TaskID, result.Metrics, optCtx.Iteration); err != nil {
			slog.Warn("diversity baseline insert failed", "task_id", optCtx.TaskID, "error", err)
		}
	}
}

func (o *Orchestrator) resolveConflicts(ctx context.Context, optCtx *models.OptimizationContext) error {
	for _, entry := range optCtx.RuleSystem.ConflictLog {
		if entry.Resolution == "unresolved" {
			if err := o.RuleEngine.ResolveConflict(ctx, optCtx, entry.RuleIDs); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateRules enforces rule-id uniqueness; a RuleEngine bug producing
// duplicate ids is a correctness error, not a recoverable condition.
func (Orchestrator) validateRules(ctx context.Context, optCtx *models.OptimizationContext) error {
	if optCtx.RuleSystem == nil {
		return nil
	}
	seen := make(map[string]bool, len(optCtx.RuleSystem.Rules))
	for _, r := range optCtx.RuleSystem.Rules {
		if seen[r.ID] {
			return apperrors.New(apperrors.KindLayerLogic, "RULES_DUPLICATE_ID", "rule engine produced duplicate rule ids")
		}
		seen[r.ID] = true
	}
	return nil
}

func (o *Orchestrator) generateCandidates(ctx context.Context, optCtx *models.OptimizationContext) ([]string, error) {
	variantCount := optCtx.Config.TemplateVariantCount
	if variantCount == 0 {
		variantCount = 1
	}

	candidates := make([]string, 0, variantCount)
	for i := uint32(0); i < variantCount; i++ {
		optCtx.Extensions[extkeys.CandidateIndex] = i
		prompt, err := o.PromptGenerator.Generate(ctx, optCtx)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, prompt)
	}
	return candidates, nil
}

func (o *Orchestrator) executeCandidates(ctx context.Context, optCtx *models.OptimizationContext, candidates []string) ([]candidateRun, error) {
	runs := make([]candidateRun, len(candidates))
	for i, prompt := range candidates {
		results, err := o.ExecutionTarget.ExecuteBatch(ctx, optCtx.ExecutionTargetConfig, prompt, optCtx.TestCases)
		if err != nil {
			return nil, err
		}
		runs[i] = candidateRun{prompt: prompt, results: results}
	}
	return runs, nil
}

func (o *Orchestrator) evaluateCandidates(ctx context.Context, optCtx *models.OptimizationContext, runs []candidateRun) error {
	config, _ := optCtx.Extensions[extkeys.TaskEvaluatorConfig].(map[string]any)

	byID := make(map[string]models.TestCase, len(optCtx.TestCases))
	for _, tc := range optCtx.TestCases {
		byID[tc.ID] = tc
	}

	for i := range runs {
		pairs := make([]layers.EvalPair, 0, len(runs[i].results))
		for _, r := range runs[i].results {
			tc, ok := byID[r.TestCaseID]
			if !ok {
				continue
			}
			pairs = append(pairs, layers.EvalPair{TestCase: tc, Result: r})
		}
		evals, err := o.Evaluator.EvaluateBatch(ctx, pairs, config)
		if err != nil {
			return err
		}
		runs[i].evals = evals

		fb, err := o.Aggregator.Aggregate(ctx, evals)
		if err != nil {
			return err
		}
		runs[i].fb = fb
	}

	optCtx.Extensions[extkeys.Layer1TestResults] = buildTestResults(bestRun(runs))
	return nil
}

// seedTestResults ensures RuleEngine.ExtractRules always has a
// layer1_test_results entry to read, even on a task's very first
// iteration when no candidate has been evaluated yet.
func seedTestResults(optCtx *models.OptimizationContext) {
	if _, ok := optCtx.Extensions[extkeys.Layer1TestResults]; !ok {
		optCtx.Extensions[extkeys.Layer1TestResults] = []models.RuleEngineTestResult{}
	}
}

// bestRun picks the highest-mean-score candidate run, the one ExtractRules
// treats as representative for the next round of rule mining.
func bestRun(runs []candidateRun) candidateRun {
	best := runs[0]
	for _, r := range runs[1:] {
		if r.fb.MeanScore > best.fb.MeanScore {
			best = r
		}
	}
	return best
}

func buildTestResults(run candidateRun) []models.RuleEngineTestResult {
	out := make([]models.RuleEngineTestResult, 0, len(run.evals))
	for _, e := range run.evals {
		out = append(out, models.RuleEngineTestResult{
			TestCaseID:   e.TestCaseID,
			Passed:       e.Passed,
			FailurePoint: e.FailurePoint,
		})
	}
	return out
}

func (o *Orchestrator) clusterFailures(optCtx *models.OptimizationContext, runs []candidateRun) {
	archive, _ := optCtx.Extensions[extkeys.FailureArchive].([]string)
	for _, run := range runs {
		for _, e := range run.evals {
			if !e.Passed {
				archive = append(archive, e.TestCaseID+":"+e.FailurePoint)
			}
		}
	}
	if over := len(archive) - extkeys.FailureArchiveMaxEntries; over > 0 {
		archive = archive[over:]
	}
	optCtx.Extensions[extkeys.FailureArchive] = archive
}

func (o *Orchestrator) optimize(ctx context.Context, optCtx *models.OptimizationContext, runs []candidateRun) error {
	ranking := make([]models.CandidateScore, 0, len(runs))
	scores := make([]float64, 0, len(runs))
	for _, run := range runs {
		ranking = append(ranking, models.CandidateScore{Prompt: run.prompt, Score: run.fb.MeanScore})
		scores = append(scores, run.fb.MeanScore)
	}
	optCtx.Extensions[extkeys.CandidateRanking] = ranking

	scoreHistory, _ := optCtx.Extensions[extkeys.RecentPrimaryScores].([]float64)

	err := o.Optimizer.Optimize(ctx, optCtx, runs[len(runs)-1].fb)

	optCtx.Extensions[extkeys.RecentPrimaryScores] = append(scoreHistory, scores...)
	return err
}

// smartRetest re-runs the execution target against the current prompt's
// test cases and re-evaluates them; the evaluations are not recorded or
// compared, and only execution/evaluation errors affect the run.
func (o *Orchestrator) smartRetest(ctx context.Context, optCtx *models.OptimizationContext) error {
	results, err := o.ExecutionTarget.ExecuteBatch(ctx, optCtx.ExecutionTargetConfig, optCtx.CurrentPrompt, optCtx.TestCases)
	if err != nil {
		return err
	}
	byID := make(map[string]models.TestCase, len(optCtx.TestCases))
	for _, tc := range optCtx.TestCases {
		byID[tc.ID] = tc
	}
	pairs := make([]layers.EvalPair, 0, len(results))
	for _, r := range results {
		if tc, ok := byID[r.TestCaseID]; ok {
			pairs = append(pairs, layers.EvalPair{TestCase: tc, Result: r})
		}
	}
	_, err = o.Evaluator.EvaluateBatch(ctx, pairs, nil)
	return err
}

// safetyCheck re-evaluates the committed prompt and fails the task if its
// pass rate has fallen below SafetyPassRateFloor.
func (o *Orchestrator) safetyCheck(ctx context.Context, optCtx *models.OptimizationContext) error {
	results, err := o.ExecutionTarget.ExecuteBatch(ctx, optCtx.ExecutionTargetConfig, optCtx.CurrentPrompt, optCtx.TestCases)
	if err != nil {
		return err
	}
	byID := make(map[string]models.TestCase, len(optCtx.TestCases))
	for _, tc := range optCtx.TestCases {
		byID[tc.ID] = tc
	}
	pairs := make([]layers.EvalPair, 0, len(results))
	for _, r := range results {
		if tc, ok := byID[r.TestCaseID]; ok {
			pairs = append(pairs, layers.EvalPair{TestCase: tc, Result: r})
		}
	}
	evals, err := o.Evaluator.EvaluateBatch(ctx, pairs, nil)
	if err != nil {
		return err
	}
	fb, err := o.Aggregator.Aggregate(ctx, evals)
	if err != nil {
		return err
	}
	if len(evals) > 0 && fb.PassRate < SafetyPassRateFloor {
		return apperrors.New(apperrors.KindLayerLogic, "SAFETY_PASS_RATE_BELOW_FLOOR", "committed prompt failed the safety pass-rate floor")
	}
	return nil
}

// checkPause implements the §4.7 pause-handling algorithm: persist a
// snapshot, move to WaitingUser, emit UserPause, and suspend until resumed.
// Returns true when it suspended (so the caller should re-check its loop
// condition rather than proceed with the in-flight phase).
func (o *Orchestrator) checkPause(ctx context.Context, optCtx *models.OptimizationContext, correlationID string) (bool, error) {
	if o.Pause == nil {
		return false, nil
	}
	controller := o.Pause.GetOrCreate(optCtx.TaskID)

	if controller.RunControlState() == models.RunControlTerminated {
		o.transition(ctx, optCtx, correlationID, models.StateUserStopped)
		iter := optCtx.Iteration
		o.recordAsync(ctx, optCtx, models.EventTaskTerminated, models.ActorUser, nil, &iter, correlationID)
		return true, nil
	}

	if !controller.IsPauseRequested() {
		return false, nil
	}

	prevState := optCtx.State
	snapshot := *optCtx
	controller.CheckpointPause(correlationID, &snapshot)
	if o.Checkpoints != nil {
		if _, err := o.Checkpoints.Save(ctx, optCtx, models.LineageManual, "", "paused", correlationID, ""); err != nil {
			slog.Warn("checkpoint save failed on pause", "task_id", optCtx.TaskID, "error", err)
		}
	}

	o.transition(ctx, optCtx, correlationID, models.StateWaitingUser)
	iter := optCtx.Iteration
	o.recordAsync(ctx, optCtx, models.EventUserPause, models.ActorUser, nil, &iter, correlationID)

	for controller.RunControlState() != models.RunControlResuming {
		if controller.RunControlState() == models.RunControlTerminated {
			o.transition(ctx, optCtx, correlationID, models.StateUserStopped)
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(pausePollInterval):
		}
	}

	optCtx.Extensions[extkeys.UserGuidance] = controller.Guidance()
	controller.MarkRunning()
	o.recordAsync(ctx, optCtx, models.EventUserResume, models.ActorUser, nil, &iter, correlationID)
	optCtx.State = prevState
	return true, nil
}

func (o *Orchestrator) transition(ctx context.Context, optCtx *models.OptimizationContext, correlationID string, newState models.State) {
	optCtx.Extensions[extkeys.IterationPrevState] = string(optCtx.State)
	optCtx.State = newState

	if o.Bus != nil {
		o.Bus.Publish("iteration:state_changed", optCtx.TaskID, map[string]any{
			"state":          string(newState),
			"iteration":      optCtx.Iteration,
			"correlation_id": correlationID,
		})
	}
	iter := optCtx.Iteration
	o.recordAsync(ctx, optCtx, models.EventStateTransitioned, models.ActorSystem,
		map[string]any{"state": string(newState)}, &iter, correlationID)
}

func (o *Orchestrator) recordAsync(ctx context.Context, optCtx *models.OptimizationContext, eventType models.EventType, actor models.Actor, details map[string]any, iteration *uint32, correlationID string) {
	if o.History == nil {
		return
	}
	o.History.RecordAsync(ctx, optCtx.TaskID, eventType, actor, details, iteration, correlationID)
}
