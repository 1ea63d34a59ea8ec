package runner

import (
	"sync"

	"github.com/faultlinehq/faultline/internal/stats"
	"github.com/faultlinehq/faultline/pkg/types"
)

// Collector folds per-call statistics into a single strategy-wide view.
// Workers fold concurrently, so all access is serialized here rather
// than in the stats type itself.
type Collector struct {
	mu    sync.Mutex
	total *stats.CallStats
}

func NewCollector(strategy types.Strategy) *Collector {
	return &Collector{total: stats.New(strategy)}
}

// Fold merges one logical call's statistics into the running total.
func (c *Collector) Fold(cs *stats.CallStats) {
	if cs == nil {
		return
	}
	c.mu.Lock()
	c.total.Merge(cs)
	c.mu.Unlock()
}

// Stats returns the folded totals. Callers must not fold after reading.
func (c *Collector) Stats() *stats.CallStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
