package query

import (
	"context"
	"time"
)

// Endpoint is the user-facing facade over a Cache plus the captured
// async function (spec.md §4.3). It is a named async function plus
// its cache (spec.md glossary).
type Endpoint[A comparable, R any] struct {
	cfg   endpointConfig[A]
	cache *Cache[A, R]
}

// NewEndpoint wraps fn — an async function from argument A to result R
// — as an Endpoint. fn must honor ctx cancellation to support prompt
// cancellation (spec.md §5); the core's correctness does not depend on
// it doing so, only on its own attempt-token bookkeeping.
func NewEndpoint[A comparable, R any](fn func(ctx context.Context, arg A) (R, error), opts ...EndpointOption[A]) *Endpoint[A, R] {
	cfg := newEndpointConfig(opts)
	return &Endpoint[A, R]{
		cfg:   cfg,
		cache: newCache[A, R](fn, cfg),
	}
}

// Use creates a new Observer bound to this Endpoint (spec.md §4.3 op
// use). The Observer has no argument yet; call SetArg to bind one.
func (ep *Endpoint[A, R]) Use(opts ...QueryOption[A, R]) *Observer[A, R] {
	return newObserver(ep, newQueryConfig(opts))
}

// Invoke calls the wrapped async function directly, bypassing the
// cache entirely (spec.md §4.3 op invoke).
func (ep *Endpoint[A, R]) Invoke(ctx context.Context, arg A) (R, error) {
	return ep.cache.fetch(ctx, arg)
}

// Prefetch populates the cache for arg without attaching an observer
// (spec.md glossary "Prefetch"), refetching only if the entry is Idle
// or Error — a prior Success or an already in-flight Loading state is
// left alone (spec.md §4.3 op prefetch).
func (ep *Endpoint[A, R]) Prefetch(ctx context.Context, arg A) {
	e := ep.cache.GetOrAdd(arg)
	snap := e.Snapshot()
	if snap.Status == StatusIdle || snap.Status == StatusError {
		go func() { _, _ = e.Refetch(context.Background()) }()
	}
	_ = ctx // reserved: a future caller-supplied ctx could bound the prefetch goroutine
}

// Invalidate marks the entry for arg stale (spec.md §4.3 op invalidate).
func (ep *Endpoint[A, R]) Invalidate(arg A) { ep.cache.Invalidate(arg) }

// InvalidateAll invalidates every cached entry (spec.md §4.3 op
// invalidateAll).
func (ep *Endpoint[A, R]) InvalidateAll() { ep.cache.InvalidateAll() }

// InvalidateWhere invalidates every entry whose argument matches pred
// (spec.md §4.3 op invalidateWhere).
func (ep *Endpoint[A, R]) InvalidateWhere(pred func(A) bool) { ep.cache.InvalidateWhere(pred) }

// UpdateQueryData writes value into the cached entry for arg, if one
// exists (spec.md §4.3 op updateQueryData).
func (ep *Endpoint[A, R]) UpdateQueryData(arg A, value R) bool {
	return ep.cache.UpdateQueryData(arg, value)
}

// Cache exposes the underlying Cache for diagnostics (e.g. Len()).
// Observers should prefer Endpoint/Observer operations over using it
// directly.
func (ep *Endpoint[A, R]) Cache() *Cache[A, R] { return ep.cache }

func (ep *Endpoint[A, R]) defaultStaleTime() time.Duration { return ep.cfg.defaultStaleTime }
