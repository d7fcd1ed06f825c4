package checkpoint

import (
	"sort"
	"sync"

	"github.com/codeready-toolchain/promptforge/pkg/models"
)

// cache is a per-task bounded in-memory window of the most recently
// created checkpoints, kept sorted by CreatedAt (ties broken by id).
// Eviction is strict LRU by creation time — the cache is an accelerator
// only; correctness never depends on its presence.
type cache struct {
	mu     sync.RWMutex
	limit  int
	byTask map[string][]models.Checkpoint
}

func newCache(limit int) *cache {
	return &cache{limit: limit, byTask: make(map[string][]models.Checkpoint)}
}

func (c *cache) insert(cp models.Checkpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list := append(c.byTask[cp.TaskID], cp)
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	if len(list) > c.limit {
		list = list[len(list)-c.limit:]
	}
	c.byTask[cp.TaskID] = list
}

func (c *cache) list(taskID string) []models.Checkpoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src := c.byTask[taskID]
	out := make([]models.Checkpoint, len(src))
	copy(out, src)
	return out
}

func (c *cache) count(taskID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byTask[taskID])
}

func (c *cache) totalTasks() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byTask)
}

func (c *cache) totalCached() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, list := range c.byTask {
		n += len(list)
	}
	return n
}

// invalidate drops taskID's cached window, forcing the next read to refill
// from durable storage. Used after rollback archives descendant checkpoints.
func (c *cache) invalidate(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byTask, taskID)
}

// Metrics is the snapshot exposed at GET /meta/checkpoint-metrics.
type Metrics struct {
	TotalTasks      int `json:"total_tasks"`
	TotalCached     int `json:"total_cached"`
	CacheLimit      int `json:"cache_limit"`
	AlertThreshold  int `json:"alert_threshold"`
}
