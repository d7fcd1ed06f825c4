package checkpoint

import (
	"testing"
	"time"

	"github.com/codeready-toolchain/promptforge/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestCacheEvictsOldestBeyondLimit(t *testing.T) {
	c := newCache(2)
	base := time.Now()

	c.insert(models.Checkpoint{ID: "a", TaskID: "t", CreatedAt: base})
	c.insert(models.Checkpoint{ID: "b", TaskID: "t", CreatedAt: base.Add(time.Second)})
	c.insert(models.Checkpoint{ID: "c", TaskID: "t", CreatedAt: base.Add(2 * time.Second)})

	list := c.list("t")
	assert.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
}

func TestCacheMetricsCounts(t *testing.T) {
	c := newCache(10)
	c.insert(models.Checkpoint{ID: "a", TaskID: "t1", CreatedAt: time.Now()})
	c.insert(models.Checkpoint{ID: "b", TaskID: "t2", CreatedAt: time.Now()})
	assert.Equal(t, 2, c.totalTasks())
	assert.Equal(t, 2, c.totalCached())
}
