package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStagesAreUniqueAndSorted(t *testing.T) {
	seen := make(map[string]bool)
	var lastOrder uint32
	for i, s := range Stages {
		assert.False(t, seen[string(s.State)], "duplicate state %s", s.State)
		seen[string(s.State)] = true
		if i > 0 {
			assert.GreaterOrEqual(t, s.Order, lastOrder)
		}
		lastOrder = s.Order
	}
	assert.Len(t, Stages, 22)
}

func TestStageForKnownAndUnknown(t *testing.T) {
	s, ok := StageFor("Idle")
	assert.True(t, ok)
	assert.Equal(t, "idle", s.Group)

	_, ok = StageFor("NotAState")
	assert.False(t, ok)
}
