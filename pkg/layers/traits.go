// Package layers declares the seven pluggable layer traits and the shared
// OptimizationContext protocol between them, each selectable via a factory
// based on task config — grounded on spec §4.5 and on the small
// interface-per-capability style used throughout the example corpus.
package layers

import (
	"context"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// ErrAllPassed is returned by PromptGenerator.Generate to short-circuit the
// orchestrator straight to Completed when the rule system already carries
// the terminal polarity.
var ErrAllPassed = allPassedError{}

type allPassedError struct{}

func (allPassedError) Error() string { return "rule system already all_passed" }

// IsAllPassed reports whether err is (or wraps) ErrAllPassed.
func IsAllPassed(err error) bool {
	_, ok := err.(allPassedError)
	return ok
}

// RuleEngine extracts rules from failed test cases, detects and resolves
// conflicts between them, and merges similar rules. Reads
// ctx.Extensions["layer1_test_results"].
type RuleEngine interface {
	ExtractRules(ctx context.Context, optCtx *models.OptimizationContext) error
	DetectConflicts(ctx context.Context, optCtx *models.OptimizationContext) error
	ResolveConflict(ctx context.Context, optCtx *models.OptimizationContext, ruleIDs []string) error
	MergeSimilarRules(ctx context.Context, optCtx *models.OptimizationContext) error
}

// PromptGenerator produces the next candidate prompt. Requires
// ctx.Extensions["optimization_goal"] when CurrentPrompt is empty and
// ctx.Extensions["candidate_index"] on every call; returns ErrAllPassed to
// short-circuit when the rule system's polarity already terminates search.
type PromptGenerator interface {
	Generate(ctx context.Context, optCtx *models.OptimizationContext) (string, error)
}

// Evaluator judges ExecutionResults against their TestCase references.
// config mirrors ctx.Extensions["task_evaluator_config"], passed explicitly
// since an Evaluator call only needs that one key, not the whole context.
type Evaluator interface {
	Evaluate(ctx context.Context, tc models.TestCase, result models.ExecutionResult, config map[string]any) (models.EvaluationResult, error)
	EvaluateBatch(ctx context.Context, pairs []EvalPair, config map[string]any) ([]models.EvaluationResult, error)
}

// EvalPair couples a TestCase with its ExecutionResult for a batch
// evaluation call.
type EvalPair struct {
	TestCase models.TestCase
	Result   models.ExecutionResult
}

// FeedbackAggregator collapses a batch of evaluations into a single
// AggregatedFeedback.
type FeedbackAggregator interface {
	Aggregate(ctx context.Context, results []models.EvaluationResult) (models.AggregatedFeedback, error)
}

// Optimizer picks among candidate rankings, writing
// extensions["adopt_best_candidate"] and
// extensions["layer4.best_candidate_prompt"]. Returns an error with an
// oscillation/stall code it cannot resolve.
type Optimizer interface {
	Optimize(ctx context.Context, optCtx *models.OptimizationContext, feedback models.AggregatedFeedback) error
}

// StreamChunk is one element of a TeacherModel's streaming output: a
// finite, non-restartable sequence the consumer must tolerate early
// termination of, with errors delivered as the final element.
type StreamChunk struct {
	Content    string
	IsComplete bool
	Err        error
}

// TeacherModel generates text from a prompt, blocking or streamed.
type TeacherModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error)
}

// ExecutionTarget runs a prompt against one test case's input, or a batch
// of them with order preserved and 1-to-1 alignment with testCaseIDs.
type ExecutionTarget interface {
	Execute(ctx context.Context, config map[string]any, prompt string, input map[string]any, testCaseID string) (models.ExecutionResult, error)
	ExecuteBatch(ctx context.Context, config map[string]any, prompt string, cases []models.TestCase) ([]models.ExecutionResult, error)
}
