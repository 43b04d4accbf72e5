package metrics

import (
	"sync"
	"sync/atomic"
)

// Collector counts checkout outcomes. The zero value is ready to use and a nil
// *Collector silently drops everything.
type Collector struct {
	placed           int64
	conflicts        int64
	rollbacks        int64
	rollbackFailures int64
	reaped           int64

	mu       sync.Mutex
	rejected map[string]int64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) RecordPlaced() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.placed, 1)
}

// RecordRejected counts a failed placement under its error code.
func (c *Collector) RecordRejected(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.rejected == nil {
		c.rejected = make(map[string]int64)
	}
	c.rejected[code]++
	c.mu.Unlock()
}

func (c *Collector) RecordConflict() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.conflicts, 1)
}

func (c *Collector) RecordRollback() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.rollbacks, 1)
}

func (c *Collector) RecordRollbackFailure() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.rollbackFailures, 1)
}

func (c *Collector) RecordReaped(n int) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.reaped, int64(n))
}

type Stats struct {
	Placed           int64            `json:"placed"`
	Rejected         map[string]int64 `json:"rejected"`
	Conflicts        int64            `json:"reservation_conflicts"`
	Rollbacks        int64            `json:"rollbacks"`
	RollbackFailures int64            `json:"rollback_failures"`
	Reaped           int64            `json:"reservations_reaped"`
}

func (c *Collector) GetStats() Stats {
	if c == nil {
		return Stats{Rejected: map[string]int64{}}
	}
	c.mu.Lock()
	rejected := make(map[string]int64, len(c.rejected))
	for k, v := range c.rejected {
		rejected[k] = v
	}
	c.mu.Unlock()

	return Stats{
		Placed:           atomic.LoadInt64(&c.placed),
		Rejected:         rejected,
		Conflicts:        atomic.LoadInt64(&c.conflicts),
		Rollbacks:        atomic.LoadInt64(&c.rollbacks),
		RollbackFailures: atomic.LoadInt64(&c.rollbackFailures),
		Reaped:           atomic.LoadInt64(&c.reaped),
	}
}
