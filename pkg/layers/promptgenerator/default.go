// Package promptgenerator provides the default PromptGenerator: a
// deterministic template-variant generator that folds active rules'
// statements into the current prompt, grounded on spec §4.5's extension
// contract.
package promptgenerator

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// Default builds the next candidate prompt by appending a numbered
// "constraints" section derived from the rule system's negative rules to
// either the seeded optimization goal (first call) or the current prompt.
type Default struct{}

// New builds the default prompt generator.
func New() *Default { return &Default{} }

// Generate implements PromptGenerator.
func (Default) Generate(ctx context.Context, optCtx *models.OptimizationContext) (string, error) {
	if optCtx.RuleSystem != nil && optCtx.RuleSystem.AllPassed() {
		return "", layers.ErrAllPassed
	}

	candidateIdx, ok := optCtx.Extensions["candidate_index"]
	if !ok {
		return "", apperrors.Validation("PROMPTGEN_MISSING_CANDIDATE_INDEX", "candidate_index extension not set")
	}
	idx, ok := toUint32(candidateIdx)
	if !ok || idx >= optCtx.Config.TemplateVariantCount {
		return "", apperrors.Validation("PROMPTGEN_CANDIDATE_INDEX_OUT_OF_RANGE", "candidate_index must be within [0, template_variant_count)")
	}

	base := optCtx.CurrentPrompt
	if base == "" {
		goal, ok := optCtx.Extensions["optimization_goal"].(string)
		if !ok || goal == "" {
			return "", apperrors.Validation("PROMPTGEN_MISSING_GOAL", "optimization_goal extension not set for empty current_prompt")
		}
		base = goal
	}

	var constraints []string
	if optCtx.RuleSystem != nil {
		for _, r := range optCtx.RuleSystem.Rules {
			if r.Polarity == models.PolarityNegative {
				constraints = append(constraints, r.Statement)
			}
		}
	}

	var b strings.Builder
	b.WriteString(base)
	if len(constraints) > 0 {
		b.WriteString("\n\nConstraints:\n")
		for i, c := range constraints {
			fmt.Fprintf(&b, "%d. %s\n", i+1, c)
		}
	}
	fmt.Fprintf(&b, "\n(variant %d)", idx)
	return b.String(), nil
}

func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case float64:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	default:
		return 0, false
	}
}
