package models

// TokenUsage records optional token accounting for an execution call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ExecutionResult is the outcome of running one test case against an
// ExecutionTarget. Per the sanitization contract, an Example target's
// Output/RawResponse must never contain the prompt or raw input verbatim.
type ExecutionResult struct {
	TestCaseID  string      `json:"test_case_id"`
	Output      string      `json:"output"`
	LatencyMs   int64       `json:"latency_ms"`
	TokenUsage  *TokenUsage `json:"token_usage,omitempty"`
	RawResponse string      `json:"raw_response,omitempty"`
}

// EvaluationResult is the per-test-case judgement produced by an Evaluator.
type EvaluationResult struct {
	TestCaseID      string             `json:"test_case_id"`
	Passed          bool               `json:"passed"`
	PrimaryScore    float64            `json:"primary_score"` // in [0,1]
	DimensionScores map[string]float64 `json:"dimension_scores,omitempty"`
	Confidence      float64            `json:"confidence"`
	FailurePoint    string             `json:"failure_point,omitempty"`
}

// AggregatedFeedback collapses a batch of EvaluationResults produced by a
// FeedbackAggregator.
type AggregatedFeedback struct {
	PassedCount    int     `json:"passed_count"`
	TotalCount     int     `json:"total_count"`
	PassRate       float64 `json:"pass_rate"`
	MeanScore      float64 `json:"mean_score"`
	FailureSummary string  `json:"failure_summary,omitempty"`
}

// CandidateScore is one entry of the layer4.candidate_ranking extension:
// a candidate prompt paired with its mean primary score for the iteration.
type CandidateScore struct {
	Prompt string  `json:"prompt"`
	Score  float64 `json:"score"`
}

// RuleEngineTestResult is one entry of the layer1_test_results extension
// the Orchestrator hands to RuleEngine.ExtractRules: a minimal per-test-case
// pass/fail summary, independent of which candidate produced it.
type RuleEngineTestResult struct {
	TestCaseID   string `json:"test_case_id"`
	Passed       bool   `json:"passed"`
	FailurePoint string `json:"failure_point,omitempty"`
}
