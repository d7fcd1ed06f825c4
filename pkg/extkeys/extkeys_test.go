package extkeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllKeysUnique(t *testing.T) {
	seen := make(map[string]bool, len(AllKeys))
	for _, k := range AllKeys {
		assert.False(t, seen[k], "duplicate extension key: %s", k)
		seen[k] = true
	}
}

func TestFailureArchiveMaxEntriesPositive(t *testing.T) {
	assert.Greater(t, FailureArchiveMaxEntries, 0)
}
