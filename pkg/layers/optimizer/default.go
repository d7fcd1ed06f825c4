// Package optimizer provides the default Optimizer: picks the
// highest-scoring candidate from the ranking extension and decides whether
// to adopt it, signalling a stall when no improvement has occurred for
// longer than the task's configured threshold.
package optimizer

import (
	"context"

	"github.com/codeready-toolchain/promptforge/pkg/apperrors"
	"github.com/codeready-toolchain/promptforge/pkg/extkeys"
	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// Default picks the candidate with the highest score, adopting it only
// when it improves on the best of the recent primary-score window by more
// than extkeys.MetricEpsilon. It fails with a stall code when
// consecutive_no_improvement has already reached the task's StallThreshold
// and the new candidate still does not improve.
type Default struct{}

// New builds the default optimizer.
func New() *Default { return &Default{} }

// Optimize implements Optimizer.
func (Default) Optimize(ctx context.Context, optCtx *models.OptimizationContext, feedback models.AggregatedFeedback) error {
	raw, ok := optCtx.Extensions[extkeys.CandidateRanking]
	if !ok {
		return apperrors.Validation("OPTIMIZER_MISSING_RANKING", "layer4.candidate_ranking extension not set")
	}
	ranking, ok := raw.([]models.CandidateScore)
	if !ok || len(ranking) == 0 {
		return apperrors.Validation("OPTIMIZER_EMPTY_RANKING", "layer4.candidate_ranking is empty or malformed")
	}

	best := ranking[0]
	for _, c := range ranking[1:] {
		if c.Score > best.Score {
			best = c
		}
	}

	bestHistorical := bestOf(optCtx.Extensions[extkeys.RecentPrimaryScores])
	improved := best.Score > bestHistorical+extkeys.MetricEpsilon

	consecutiveNoImprovement, _ := optCtx.Extensions[extkeys.ConsecutiveNoImprovement].(uint32)

	if !improved && consecutiveNoImprovement >= optCtx.Config.StallThreshold && optCtx.Config.StallThreshold > 0 {
		return apperrors.New(apperrors.KindLayerLogic, "OPTIMIZER_STALLED", "no improvement for consecutive_no_improvement iterations")
	}

	optCtx.Extensions[extkeys.AdoptBestCandidate] = improved
	if improved {
		optCtx.Extensions["layer4.best_candidate_prompt"] = best.Prompt
	}
	return nil
}

func bestOf(raw any) float64 {
	scores, ok := raw.([]float64)
	if !ok || len(scores) == 0 {
		return 0
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	return best
}
