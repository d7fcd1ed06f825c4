package promptgenerator

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCtx() *models.OptimizationContext {
	ctx := models.NewOptimizationContext("t1", models.TaskConfig{TemplateVariantCount: 3})
	ctx.Extensions["candidate_index"] = uint32(0)
	return ctx
}

func TestGenerateRequiresGoalWhenPromptEmpty(t *testing.T) {
	g := New()
	ctx := baseCtx()
	_, err := g.Generate(context.Background(), ctx)
	assert.Error(t, err)
}

func TestGenerateUsesGoalThenAppendsConstraints(t *testing.T) {
	g := New()
	ctx := baseCtx()
	ctx.Extensions["optimization_goal"] = "Answer concisely."
	ctx.RuleSystem.Rules = append(ctx.RuleSystem.Rules, models.Rule{
		Statement: "avoid markdown tables", Polarity: models.PolarityNegative,
	})

	out, err := g.Generate(context.Background(), ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "Answer concisely.")
	assert.Contains(t, out, "avoid markdown tables")
	assert.Contains(t, out, "(variant 0)")
}

func TestGenerateShortCircuitsWhenAllPassed(t *testing.T) {
	g := New()
	ctx := baseCtx()
	ctx.RuleSystem.Rules = append(ctx.RuleSystem.Rules, models.Rule{Polarity: models.PolarityAllPassed})

	_, err := g.Generate(context.Background(), ctx)
	assert.True(t, layers.IsAllPassed(err))
}

func TestGenerateRejectsOutOfRangeCandidateIndex(t *testing.T) {
	g := New()
	ctx := baseCtx()
	ctx.Extensions["optimization_goal"] = "goal"
	ctx.Extensions["candidate_index"] = uint32(5)

	_, err := g.Generate(context.Background(), ctx)
	assert.Error(t, err)
}
