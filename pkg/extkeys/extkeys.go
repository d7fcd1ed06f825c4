// Package extkeys enumerates the closed set of well-known keys written and
// read across layer boundaries on OptimizationContext.Extensions, grounded
// on the original implementation's domain/types/extensions module.
package extkeys

const (
	// OptimizationGoal is set by the Orchestrator and read by the
	// PromptGenerator whenever current_prompt is empty.
	OptimizationGoal = "optimization_goal"

	// CandidateIndex is set by the Orchestrator before every
	// PromptGenerator.Generate call.
	CandidateIndex = "candidate_index"

	// TaskEvaluatorConfig is set by the Orchestrator and read by the
	// Evaluator on every Evaluate call.
	TaskEvaluatorConfig = "task_evaluator_config"

	// CandidateRanking is written by the Evaluator/Aggregator and read by
	// the Optimizer once per iteration.
	CandidateRanking = "layer4.candidate_ranking"

	// RecentPrimaryScores is a read-only history window maintained by the
	// Orchestrator for the Optimizer.
	RecentPrimaryScores = "layer4.recent_primary_scores"

	// FailureArchive is a bounded, FIFO-capped, cross-iteration archive of
	// failure summaries maintained by the Orchestrator for the Optimizer.
	FailureArchive = "layer4.failure_archive"

	// ConsecutiveNoImprovement counts consecutive iterations without
	// improvement, maintained by the Orchestrator for the Optimizer.
	ConsecutiveNoImprovement = "layer4.consecutive_no_improvement"

	// UserGuidance carries free-text user guidance, set by the Orchestrator
	// on resume from pause for Layers 1-4 to read; cleared at the end of
	// every iteration.
	UserGuidance = "user_guidance"

	// CheckpointBranchID is set per-branch by the Orchestrator and read by
	// the Checkpoint Manager.
	CheckpointBranchID = "checkpoint.branch_id"

	// IterationPrevState records the state the orchestrator transitioned
	// from, for diagnostics only.
	IterationPrevState = "iteration.prev_state"

	// AdoptBestCandidate is written by the Optimizer and read by the
	// Orchestrator once per iteration.
	AdoptBestCandidate = "adopt_best_candidate"

	// Layer1TestResults carries the prior iteration's per-test-case
	// pass/fail summary (the best-scoring candidate's), written by the
	// Orchestrator after Evaluating and read by RuleEngine.ExtractRules at
	// the top of the next iteration (and again at UpdatingRules within the
	// same iteration, against the iteration just evaluated).
	Layer1TestResults = "layer1_test_results"

	// DiversityAnalysis carries the current iteration's
	// models.DiversityAnalysisResult, written by the Orchestrator once per
	// iteration (when diversity analysis is enabled and more than one
	// candidate was generated) for observers and the Optimizer to inspect.
	DiversityAnalysis = "diversity_analysis"
)

// MetricEpsilon is the absolute epsilon used for comparing scores and pass
// rates, which are mathematically bounded to [0,1].
const MetricEpsilon = 1e-12

// FailureArchiveMaxEntries bounds the FailureArchive FIFO.
const FailureArchiveMaxEntries = 200

// AllKeys lists every well-known extension key, used by tests to assert
// global key uniqueness.
var AllKeys = []string{
	OptimizationGoal,
	CandidateIndex,
	TaskEvaluatorConfig,
	CandidateRanking,
	RecentPrimaryScores,
	FailureArchive,
	ConsecutiveNoImprovement,
	UserGuidance,
	CheckpointBranchID,
	IterationPrevState,
	AdoptBestCandidate,
	Layer1TestResults,
	DiversityAnalysis,
}
