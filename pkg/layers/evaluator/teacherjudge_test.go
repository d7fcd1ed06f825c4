package evaluator

import (
	"context"
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/layers/teacher"
	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeacherJudgeUsesExactMatchForExactReferences(t *testing.T) {
	j := NewTeacherJudge(teacher.NewExample(`{"passed":false,"score":0,"confidence":1}`))
	tc := models.TestCase{ID: "tc-1", Reference: models.Reference{Kind: models.ReferenceExact, ExactString: "hello"}}
	result := models.ExecutionResult{TestCaseID: "tc-1", Output: "Hello"}

	got, err := j.Evaluate(context.Background(), tc, result, nil)
	require.NoError(t, err)
	assert.True(t, got.Passed)
	assert.Equal(t, float64(1), got.PrimaryScore)
}

func TestTeacherJudgeParsesSemanticVerdict(t *testing.T) {
	j := NewTeacherJudge(teacher.NewExampleDefault())
	tc := models.TestCase{ID: "tc-2", Reference: models.Reference{Kind: models.ReferenceSemantic, SemanticJudgement: "answers politely"}}
	result := models.ExecutionResult{TestCaseID: "tc-2", Output: "sure thing"}

	got, err := j.Evaluate(context.Background(), tc, result, nil)
	require.NoError(t, err)
	assert.True(t, got.Passed)
	assert.Equal(t, float64(1), got.PrimaryScore)
	assert.Equal(t, float64(1), got.Confidence)
}

func TestTeacherJudgeHandlesUnparseableVerdict(t *testing.T) {
	j := NewTeacherJudge(teacher.NewExample("not json"))
	tc := models.TestCase{ID: "tc-3", Reference: models.Reference{Kind: models.ReferenceSemantic, SemanticJudgement: "x"}}
	result := models.ExecutionResult{TestCaseID: "tc-3", Output: "y"}

	got, err := j.Evaluate(context.Background(), tc, result, nil)
	require.NoError(t, err)
	assert.False(t, got.Passed)
	assert.Equal(t, "teacher_verdict_unparseable", got.FailurePoint)
}
