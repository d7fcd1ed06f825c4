package evaluator

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateExactMatchPasses(t *testing.T) {
	e := New()
	tc := models.TestCase{ID: "tc-1", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "Hello"}}
	result := models.ExecutionResult{Output: "  hello  "}

	r, err := e.Evaluate(context.Background(), tc, result, nil)
	require.NoError(t, err)
	assert.True(t, r.Passed)
	assert.Equal(t, 1.0, r.PrimaryScore)
}

func TestEvaluateExactMismatchFails(t *testing.T) {
	e := New()
	tc := models.TestCase{ID: "tc-1", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "Hello"}}
	result := models.ExecutionResult{Output: "Goodbye"}

	r, err := e.Evaluate(context.Background(), tc, result, nil)
	require.NoError(t, err)
	assert.False(t, r.Passed)
	assert.Equal(t, "output_mismatch", r.FailurePoint)
}

func TestEvaluateRespectsCustomThreshold(t *testing.T) {
	e := New()
	tc := models.TestCase{ID: "tc-1", Reference: models.Reference{Kind: models.ReferenceSemantic}}
	result := models.ExecutionResult{}

	r, err := e.Evaluate(context.Background(), tc, result, map[string]any{"pass_threshold": 0.4})
	require.NoError(t, err)
	assert.True(t, r.Passed)
}

func TestEvaluateBatchPreservesOrder(t *testing.T) {
	e := New()
	pairs := []layers.EvalPair{
		{TestCase: models.TestCase{ID: "a", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "x"}}, Result: models.ExecutionResult{Output: "x"}},
		{TestCase: models.TestCase{ID: "b", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "y"}}, Result: models.ExecutionResult{Output: "z"}},
	}
	results, err := e.EvaluateBatch(context.Background(), pairs, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].TestCaseID)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "b", results[1].TestCaseID)
	assert.False(t, results[1].Passed)
}
