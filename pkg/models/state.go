package models

// State is one step of the iteration engine's state machine. See
// pkg/orchestrator for the authoritative transition rules and the
// group/label/order descriptor table exposed at GET /meta/iteration-stages.
type State string

const (
	StateIdle                 State = "Idle"
	StateInitializing         State = "Initializing"
	StateExtractingRules      State = "ExtractingRules"
	StateDetectingConflicts   State = "DetectingConflicts"
	StateResolvingConflicts   State = "ResolvingConflicts"
	StateMergingSimilarRules  State = "MergingSimilarRules"
	StateValidatingRules      State = "ValidatingRules"
	StateGeneratingPrompt     State = "GeneratingPrompt"
	StateRunningTests         State = "RunningTests"
	StateEvaluating           State = "Evaluating"
	StateClusteringFailures   State = "ClusteringFailures"
	StateReflecting           State = "Reflecting"
	StateUpdatingRules        State = "UpdatingRules"
	StateOptimizing           State = "Optimizing"
	StateSmartRetesting       State = "SmartRetesting"
	StateSafetyChecking       State = "SafetyChecking"
	StateWaitingUser          State = "WaitingUser"
	StateHumanIntervention    State = "HumanIntervention"
	StateCompleted            State = "Completed"
	StateMaxIterationsReached State = "MaxIterationsReached"
	StateUserStopped          State = "UserStopped"
	StateFailed               State = "Failed"
)

// IsTerminal reports whether s is one of the four terminal states.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateMaxIterationsReached, StateUserStopped, StateFailed:
		return true
	default:
		return false
	}
}

// RunControlState is the small overlay capturing user-driven run lifecycle
// on top of the iteration State.
type RunControlState string

const (
	RunControlRunning        RunControlState = "Running"
	RunControlPauseRequested RunControlState = "PauseRequested"
	RunControlPaused         RunControlState = "Paused"
	RunControlResuming       RunControlState = "Resuming"
	RunControlTerminated     RunControlState = "Terminated"
)

// OptimizationContext is the shared per-task mutable object passed between
// layers. Iteration is monotone non-decreasing within a branch; it may
// reset only on rollback to a prior checkpoint, which forms a new branch.
type OptimizationContext struct {
	TaskID                string
	ExecutionTargetConfig map[string]any
	CurrentPrompt         string
	RuleSystem            *RuleSystem
	Iteration             uint32
	State                 State
	RunControlState       RunControlState
	TestCases             []TestCase
	Config                TaskConfig
	Checkpoints           []Checkpoint // recent in-memory window
	Extensions            map[string]any
}

// NewOptimizationContext returns a context in the initial Idle state with
// an empty rule system and extensions bag.
func NewOptimizationContext(taskID string, cfg TaskConfig) *OptimizationContext {
	return &OptimizationContext{
		TaskID:          taskID,
		RuleSystem:      NewRuleSystem(),
		State:           StateIdle,
		RunControlState: RunControlRunning,
		Config:          cfg,
		Extensions:      make(map[string]any),
	}
}

// OptimizationResult is what the Engine Facade's run/resume calls return:
// the terminal state reached plus enough of the final context for a caller
// to render a summary without re-reading the full OptimizationContext.
type OptimizationResult struct {
	TaskID        string  `json:"task_id"`
	FinalState    State   `json:"final_state"`
	Iteration     uint32  `json:"iteration"`
	CurrentPrompt string  `json:"current_prompt"`
	Error         string  `json:"error,omitempty"`
}

// TaskConfig carries the tunables needed to drive one task's iteration
// loop, selecting trait implementations and bounding iteration counts.
type TaskConfig struct {
	MaxIterations          uint32          `json:"max_iterations"`
	TemplateVariantCount   uint32          `json:"template_variant_count"`
	ExecutionTargetType    string          `json:"execution_target_type"` // Dify | Generic | Example
	EvaluatorKind          string          `json:"evaluator_kind"`        // Example | Default
	SmartRetestingEnabled  bool            `json:"smart_retesting_enabled"`
	SafetyCheckingEnabled  bool            `json:"safety_checking_enabled"`
	StallThreshold         uint32          `json:"stall_threshold"`
	ParallelExecutionLimit int             `json:"parallel_execution_limit"`
	Diversity              DiversityConfig `json:"diversity"`
}
