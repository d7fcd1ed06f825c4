package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/promptforge/pkg/extkeys"
	"github.com/codeready-toolchain/promptforge/pkg/layers"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// teacherVerdict is the JSON contract a TeacherModel's judging response
// must follow, matching the Example teacher model's fixed
// `{"passed":true,"score":1,"confidence":1}` payload.
type teacherVerdict struct {
	Passed     bool    `json:"passed"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// TeacherJudge evaluates Semantic/External references by asking a
// TeacherModel to score the execution output against the reference,
// falling back to Default's exact-match logic for Exact references.
// Selected by task config's evaluator_kind="Default" (teacher-backed),
// per spec §4.8.
type TeacherJudge struct {
	teacher layers.TeacherModel
}

// NewTeacherJudge builds a TeacherJudge over the given teacher model.
func NewTeacherJudge(teacher layers.TeacherModel) *TeacherJudge {
	return &TeacherJudge{teacher: teacher}
}

// Evaluate implements Evaluator.
func (j *TeacherJudge) Evaluate(ctx context.Context, tc models.TestCase, result models.ExecutionResult, config map[string]any) (models.EvaluationResult, error) {
	if tc.Reference.Kind == models.ReferenceExact {
		return (Default{}).Evaluate(ctx, tc, result, config)
	}

	prompt := fmt.Sprintf(
		"Judge whether this output satisfies the reference. Respond as JSON {\"passed\":bool,\"score\":number,\"confidence\":number}.\nReference: %s\nOutput: %s",
		referenceText(tc.Reference), result.Output,
	)
	raw, err := j.teacher.Generate(ctx, prompt)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	var verdict teacherVerdict
	if decodeErr := json.Unmarshal([]byte(strings.TrimSpace(raw)), &verdict); decodeErr != nil {
		return models.EvaluationResult{
			TestCaseID:   tc.ID,
			Passed:       false,
			PrimaryScore: 0,
			FailurePoint: "teacher_verdict_unparseable",
		}, nil
	}

	threshold := passThreshold(config)
	return models.EvaluationResult{
		TestCaseID:   tc.ID,
		Passed:       verdict.Passed && verdict.Score+extkeys.MetricEpsilon >= threshold,
		PrimaryScore: verdict.Score,
		Confidence:   verdict.Confidence,
	}, nil
}

// EvaluateBatch evaluates each pair independently, preserving order.
func (j *TeacherJudge) EvaluateBatch(ctx context.Context, pairs []layers.EvalPair, config map[string]any) ([]models.EvaluationResult, error) {
	out := make([]models.EvaluationResult, 0, len(pairs))
	for _, p := range pairs {
		r, err := j.Evaluate(ctx, p.TestCase, p.Result, config)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func referenceText(ref models.Reference) string {
	switch {
	case ref.SemanticJudgement != "":
		return ref.SemanticJudgement
	case ref.ExternalScorerRef != "":
		return "external scorer: " + ref.ExternalScorerRef
	default:
		return ref.ExactString
	}
}
