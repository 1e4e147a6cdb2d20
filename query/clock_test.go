package query

import (
	"sync"
	"time"
)

// manualClock is a Clock test double advanced explicitly by tests,
// grounded on spec.md §9's open question resolution: staleness tests
// inject a clock rather than sleep on wall time.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
