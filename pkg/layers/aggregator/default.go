// Package aggregator provides the default FeedbackAggregator: a simple
// pass-rate and mean-score rollup with a truncated failure summary.
package aggregator

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// MaxFailureSummaryEntries bounds how many failing test case ids appear in
// AggregatedFeedback.FailureSummary.
const MaxFailureSummaryEntries = 5

// Default collapses a batch of EvaluationResults into pass rate, mean
// score, and a short human-readable summary of the first failures.
type Default struct{}

// New builds the default aggregator.
func New() *Default { return &Default{} }

// Aggregate implements FeedbackAggregator.
func (Default) Aggregate(ctx context.Context, results []models.EvaluationResult) (models.AggregatedFeedback, error) {
	if len(results) == 0 {
		return models.AggregatedFeedback{}, nil
	}

	var passed int
	var scoreSum float64
	var failures []string

	for _, r := range results {
		if r.Passed {
			passed++
		} else if len(failures) < MaxFailureSummaryEntries {
			failures = append(failures, fmt.Sprintf("%s:%s", r.TestCaseID, r.FailurePoint))
		}
		scoreSum += r.PrimaryScore
	}

	total := len(results)
	feedback := models.AggregatedFeedback{
		PassedCount: passed,
		TotalCount:  total,
		PassRate:    float64(passed) / float64(total),
		MeanScore:   scoreSum / float64(total),
	}
	if len(failures) > 0 {
		feedback.FailureSummary = strings.Join(failures, "; ")
	}
	return feedback, nil
}
