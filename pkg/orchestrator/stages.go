// Package orchestrator implements the Iteration Engine: the 22-state
// machine that drives one optimization task from Idle through its rule,
// prompt, execution, evaluation, and optimization phases to a terminal
// state, grounded on spec §4.7 and the original implementation's
// core/iteration_engine module plus
// domain/models/iteration_stage.rs's authoritative group/label/order table.
package orchestrator

import "github.com/codeready-toolchain/promptforge/pkg/models"

// StageDescriptor is the authoritative, backend-owned mapping from state to
// its UI grouping, label, and display order, exposed at
// GET /meta/iteration-stages so the frontend never re-derives it.
type StageDescriptor struct {
	State models.State `json:"state"`
	Group string       `json:"group"`
	Label string       `json:"label"`
	Order uint32       `json:"order"`
}

func stage(state models.State, group, label string, order uint32) StageDescriptor {
	return StageDescriptor{State: state, Group: group, Label: label, Order: order}
}

// Stages lists every state's descriptor, in display order.
var Stages = []StageDescriptor{
	stage(models.StateIdle, "idle", "Idle", 0),
	stage(models.StateInitializing, "setup", "Initializing", 10),
	stage(models.StateExtractingRules, "rules", "Extracting rules", 20),
	stage(models.StateDetectingConflicts, "rules", "Detecting conflicts", 30),
	stage(models.StateResolvingConflicts, "rules", "Resolving conflicts", 40),
	stage(models.StateMergingSimilarRules, "rules", "Merging similar rules", 50),
	stage(models.StateValidatingRules, "rules", "Validating rules", 60),
	stage(models.StateGeneratingPrompt, "prompt", "Generating candidate prompt", 70),
	stage(models.StateRunningTests, "execution", "Running tests", 80),
	stage(models.StateEvaluating, "evaluation", "Evaluating", 90),
	stage(models.StateClusteringFailures, "evaluation", "Clustering failures", 100),
	stage(models.StateReflecting, "reflection", "Reflecting", 110),
	stage(models.StateUpdatingRules, "rules", "Updating rules", 120),
	stage(models.StateOptimizing, "optimization", "Optimizing", 130),
	stage(models.StateSmartRetesting, "execution", "Smart retesting", 140),
	stage(models.StateSafetyChecking, "safety", "Safety checking", 150),
	stage(models.StateWaitingUser, "control", "Waiting for user", 160),
	stage(models.StateHumanIntervention, "control", "Human intervention", 170),
	stage(models.StateCompleted, "terminal", "Completed", 900),
	stage(models.StateMaxIterationsReached, "terminal", "Max iterations reached", 910),
	stage(models.StateUserStopped, "terminal", "User stopped", 920),
	stage(models.StateFailed, "terminal", "Failed", 930),
}

// StageFor looks up a single state's descriptor.
func StageFor(state models.State) (StageDescriptor, bool) {
	for _, s := range Stages {
		if s.State == state {
			return s, true
		}
	}
	return StageDescriptor{}, false
}
