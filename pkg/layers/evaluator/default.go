// Package evaluator provides the default Evaluator: an exact/semantic
// reference judge that respects the task_evaluator_config extension for a
// configurable pass threshold.
package evaluator

import (
	"context"
	"strings"

	"github.com/codeready-toolchain/promptforge/pkg/extkeys"
	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// DefaultPassThreshold is used when task_evaluator_config carries no
// explicit threshold.
const DefaultPassThreshold = 0.8

// Default judges an ExecutionResult against its TestCase's Reference.
// Exact references compare trimmed, case-insensitive equality; semantic
// references receive a fixed partial-credit score since no real judging
// model is wired by default — callers needing true semantic judgement
// supply their own Evaluator.
type Default struct{}

// New builds the default evaluator.
func New() *Default { return &Default{} }

func passThreshold(config map[string]any) float64 {
	if config == nil {
		return DefaultPassThreshold
	}
	if v, ok := config["pass_threshold"].(float64); ok && v > 0 {
		return v
	}
	return DefaultPassThreshold
}

// Evaluate implements Evaluator.
func (Default) Evaluate(ctx context.Context, tc models.TestCase, result models.ExecutionResult, config map[string]any) (models.EvaluationResult, error) {
	var score float64
	var failurePoint string

	switch tc.Reference.Kind {
	case models.ReferenceExact:
		if strings.TrimSpace(strings.ToLower(result.Output)) == strings.TrimSpace(strings.ToLower(tc.Reference.ExactString)) {
			score = 1
		} else {
			score = 0
			failurePoint = "output_mismatch"
		}
	case models.ReferenceSemantic, models.ReferenceExternal:
		// No real judging model wired by default; emit a fixed 0.5 score,
		// which fails under DefaultPassThreshold and passes only when the
		// configured threshold is at most 0.5, so downstream layers can still
		// exercise their logic against deterministic input.
		score = 0.5
		failurePoint = "semantic_judgement_unavailable"
	default:
		score = 0
		failurePoint = "unknown_reference_kind"
	}

	threshold := passThreshold(config)
	return models.EvaluationResult{
		TestCaseID:   tc.ID,
		Passed:       score+extkeys.MetricEpsilon >= threshold,
		PrimaryScore: score,
		Confidence:   1,
		FailurePoint: failurePoint,
	}, nil
}

// EvaluateBatch evaluates each pair independently, preserving order.
func (d Default) EvaluateBatch(ctx context.Context, pairs []layers.EvalPair, config map[string]any) ([]models.EvaluationResult, error) {
	out := make([]models.EvaluationResult, 0, len(pairs))
	for _, p := range pairs {
		r, err := d.Evaluate(ctx, p.TestCase, p.Result, config)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
