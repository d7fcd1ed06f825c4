// Package executiontarget provides ExecutionTarget implementations:
// a deterministic, network-free Example target for demoing and testing
// the extension point, grounded on the original implementation's
// core/execution_target/example_impl.rs.
package executiontarget

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// Example is a deterministic, network-free ExecutionTarget used to
// demonstrate the extension point. It never echoes the prompt or input
// verbatim — only a structured, sanitized summary — so it is safe to log
// its output alongside request traces.
type Example struct{}

// New builds an Example execution target.
func New() *Example { return &Example{} }

// Execute implements ExecutionTarget.
func (Example) Execute(ctx context.Context, config map[string]any, prompt string, input map[string]any, testCaseID string) (models.ExecutionResult, error) {
	id := strings.TrimSpace(testCaseID)
	if id == "" {
		return models.ExecutionResult{}, apperrors.Validation("EXEC_INVALID_TEST_CASE_ID", "test_case_id must not be empty")
	}

	promptLen := utf8.RuneCountInString(prompt)
	keyCount := len(input)

	output := fmt.Sprintf("example_execution_target: test_case_id=%s prompt_len=%d input_keys_count=%d", id, promptLen, keyCount)

	raw, _ := json.Marshal(map[string]any{
		"kind":             "example_execution_target",
		"prompt_len":       promptLen,
		"input_keys_count": keyCount,
	})

	return models.ExecutionResult{
		TestCaseID:  id,
		Output:      output,
		LatencyMs:   0,
		RawResponse: string(raw),
	}, nil
}

// ExecuteBatch runs Execute over each test case in order, preserving
// 1-to-1 alignment between cases and results.
func (e Example) ExecuteBatch(ctx context.Context, config map[string]any, prompt string, cases []models.TestCase) ([]models.ExecutionResult, error) {
	results := make([]models.ExecutionResult, 0, len(cases))
	for _, tc := range cases {
		r, err := e.Execute(ctx, config, prompt, tc.Input, tc.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
