package checkpoint

import (
	"testing"

	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
)

func baseCheckpoint() models.Checkpoint {
	return models.Checkpoint{
		TaskID:          "task-1",
		Iteration:       3,
		State:           models.StateOptimizing,
		RunControlState: models.RunControlRunning,
		Prompt:          "do the thing",
		RuleSystem: &models.RuleSystem{
			Rules:    []models.Rule{{ID: "r1", Statement: "s1", Polarity: models.PolarityPositive, Confidence: 0.9}},
			Coverage: map[string][]string{"tc-1": {"r1"}},
			Version:  2,
		},
		BranchID:    "b1",
		LineageType: models.LineageAutomatic,
	}
}

func TestChecksumDeterministic(t *testing.T) {
	a := baseCheckpoint()
	b := baseCheckpoint()
	assert.Equal(t, Checksum(a), Checksum(b))
}

func TestChecksumChangesWithSemanticField(t *testing.T) {
	base := Checksum(baseCheckpoint())

	mutated := baseCheckpoint()
	mutated.Prompt = "do a different thing"
	assert.NotEqual(t, base, Checksum(mutated))

	mutated = baseCheckpoint()
	mutated.RuleSystem.Rules[0].Confidence = 0.1
	assert.NotEqual(t, base, Checksum(mutated))

	mutated = baseCheckpoint()
	mutated.Iteration = 4
	assert.NotEqual(t, base, Checksum(mutated))

	mutated = baseCheckpoint()
	mutated.LineageType = models.LineageUserRollback
	assert.NotEqual(t, base, Checksum(mutated))
}

func TestChecksumStableUnderCoverageKeyOrder(t *testing.T) {
	a := baseCheckpoint()
	a.RuleSystem.Coverage = map[string][]string{"tc-1": {"r1"}, "tc-2": {"r2"}}
	b := baseCheckpoint()
	b.RuleSystem.Coverage = map[string][]string{"tc-2": {"r2"}, "tc-1": {"r1"}}
	assert.Equal(t, Checksum(a), Checksum(b))
}
