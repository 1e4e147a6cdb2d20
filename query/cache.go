package query

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
)

// Cache is the per-endpoint keyed store of Executions (spec.md §4.2
// "Query Cache"). It owns every Execution it returns from GetOrAdd;
// Observers only ever hold a non-owning reference, cleared on detach.
type Cache[A comparable, R any] struct {
	fetch    func(ctx context.Context, arg A) (R, error)
	clock    Clock
	log      logr.Logger
	keyEqual func(A, A) bool

	mu    sync.Mutex
	byKey map[A]*Execution[A, R]   // fast path: plain map equality
	list  []*Execution[A, R]       // used instead of byKey when keyEqual is set
}

func newCache[A comparable, R any](fetch func(context.Context, A) (R, error), cfg endpointConfig[A]) *Cache[A, R] {
	c := &Cache[A, R]{
		fetch:    fetch,
		clock:    cfg.clock,
		log:      cfg.logger,
		keyEqual: cfg.keyEqual,
	}
	if c.keyEqual == nil {
		c.byKey = make(map[A]*Execution[A, R])
	}
	return c
}

func (c *Cache[A, R]) findLocked(arg A) *Execution[A, R] {
	if c.keyEqual == nil {
		return c.byKey[arg]
	}
	for _, e := range c.list {
		if c.keyEqual(e.Arg(), arg) {
			return e
		}
	}
	return nil
}

func (c *Cache[A, R]) insertLocked(e *Execution[A, R]) {
	if c.keyEqual == nil {
		c.byKey[e.Arg()] = e
		return
	}
	c.list = append(c.list, e)
}

// GetOrAdd returns the Execution for arg, creating an Idle one if
// absent (spec.md §4.2 op getOrAdd).
func (c *Cache[A, R]) GetOrAdd(arg A) *Execution[A, R] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.findLocked(arg); e != nil {
		return e
	}
	e := newExecution[A, R](arg, c.fetch, c.clock, c.log)
	c.insertLocked(e)
	return e
}

// AddUncached returns a freshly allocated Execution not inserted into
// the cache map — used by Observer.Trigger to implement the
// cache-bypassing "mutation" pattern (spec.md §4.2 op addUncached).
func (c *Cache[A, R]) AddUncached(arg A) *Execution[A, R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newExecution[A, R](arg, c.fetch, c.clock, c.log)
}

// Invalidate marks the entry for arg stale, if it exists (spec.md
// §4.2 op invalidate). No-op otherwise.
func (c *Cache[A, R]) Invalidate(arg A) {
	c.mu.Lock()
	e := c.findLocked(arg)
	c.mu.Unlock()
	if e != nil {
		e.Invalidate()
	}
}

// InvalidateWhere invalidates every entry whose argument matches pred
// (spec.md §4.2 op invalidateWhere).
func (c *Cache[A, R]) InvalidateWhere(pred func(A) bool) {
	for _, e := range c.snapshotEntries() {
		if pred(e.Arg()) {
			e.Invalidate()
		}
	}
}

// InvalidateAll invalidates every entry (spec.md §4.2 op invalidateAll).
func (c *Cache[A, R]) InvalidateAll() {
	for _, e := range c.snapshotEntries() {
		e.Invalidate()
	}
}

// UpdateQueryData writes value into the entry for arg if it exists,
// returning whether it did (spec.md §4.2 op updateQueryData).
func (c *Cache[A, R]) UpdateQueryData(arg A, value R) bool {
	c.mu.Lock()
	e := c.findLocked(arg)
	c.mu.Unlock()
	if e == nil {
		return false
	}
	e.UpdateData(value)
	return true
}

// Len reports the number of cached entries. Diagnostic only — spec.md
// permits but does not require eviction, so this is not a capacity.
func (c *Cache[A, R]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keyEqual == nil {
		return len(c.byKey)
	}
	return len(c.list)
}

func (c *Cache[A, R]) snapshotEntries() []*Execution[A, R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keyEqual == nil {
		out := make([]*Execution[A, R], 0, len(c.byKey))
		for _, e := range c.byKey {
			out = append(out, e)
		}
		return out
	}
	out := make([]*Execution[A, R], len(c.list))
	copy(out, c.list)
	return out
}
