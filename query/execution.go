package query

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// attempt identifies one invocation of the async function (spec.md
// glossary: "Attempt"). Its id is compared against Execution.inFlight
// on completion to detect supersession (spec.md §4.1).
type attempt[R any] struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	result execResult[R]
}

type execResult[R any] struct {
	val R
	err error
}

// Snapshot is a read-only copy of an Execution's state, safe to read
// without holding any lock.
type Snapshot[R any] struct {
	Status        Status
	Data          R
	HasData       bool
	Err           error
	DataUpdatedAt time.Time
	IsInvalidated bool
	IsFetching    bool
}

// Execution is the per-(endpoint, argument) state machine: spec.md's
// "Fixed Execution". It runs the async function, tracks status, data
// and error, and fans out every transition to its observers.
type Execution[A comparable, R any] struct {
	arg   A
	fetch func(ctx context.Context, arg A) (R, error)
	clock Clock
	log   logr.Logger

	mu            sync.Mutex
	status        Status
	data          R
	hasData       bool
	err           error
	dataUpdatedAt time.Time
	isInvalidated bool
	inFlight      *attempt[R]

	observers []*Observer[A, R]
}

func newExecution[A comparable, R any](arg A, fetch func(context.Context, A) (R, error), clock Clock, log logr.Logger) *Execution[A, R] {
	return &Execution[A, R]{
		arg:    arg,
		fetch:  fetch,
		clock:  clock,
		log:    log,
		status: StatusIdle,
	}
}

// Arg returns the argument this Execution is keyed by.
func (e *Execution[A, R]) Arg() A { return e.arg }

// Snapshot returns a consistent copy of the current state.
func (e *Execution[A, R]) Snapshot() Snapshot[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Execution[A, R]) snapshotLocked() Snapshot[R] {
	return Snapshot[R]{
		Status:        e.status,
		Data:          e.data,
		HasData:       e.hasData,
		Err:           e.err,
		DataUpdatedAt: e.dataUpdatedAt,
		IsInvalidated: e.isInvalidated,
		IsFetching:    e.inFlight != nil,
	}
}

// AddObserver registers o as a subscriber (spec.md §4.1 op addObserver).
func (e *Execution[A, R]) AddObserver(o *Observer[A, R]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, existing := range e.observers {
		if existing == o {
			return
		}
	}
	e.observers = append(e.observers, o)
}

// RemoveObserver unregisters o. Returns true if it was present.
func (e *Execution[A, R]) RemoveObserver(o *Observer[A, R]) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.observers {
		if existing == o {
			e.observers = append(e.observers[:i], e.observers[i+1:]...)
			return true
		}
	}
	return false
}

// ObserverCount reports the number of attached observers.
func (e *Execution[A, R]) ObserverCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.observers)
}

// IsStaleByTime implements spec.md §4.1: invalidated, never-fetched,
// or older than staleTime counts as stale.
func (e *Execution[A, R]) IsStaleByTime(staleTime time.Duration, now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isStaleByTimeLocked(staleTime, now)
}

func (e *Execution[A, R]) isStaleByTimeLocked(staleTime time.Duration, now time.Time) bool {
	if e.isInvalidated {
		return true
	}
	if e.dataUpdatedAt.IsZero() {
		return true
	}
	return now.Sub(e.dataUpdatedAt) >= staleTime
}

// IsStale is IsStaleByTime evaluated against the Execution's own clock,
// the form Observer uses internally when deciding whether setArg/setArgAsync
// must kick off a refetch.
func (e *Execution[A, R]) IsStale(staleTime time.Duration) bool {
	return e.IsStaleByTime(staleTime, e.clock.Now())
}

// UpdateData implements spec.md §4.1 op updateData: a manual, cache-side
// write that does not invoke the async function.
func (e *Execution[A, R]) UpdateData(value R) {
	e.mu.Lock()
	e.data = value
	e.hasData = true
	e.err = nil
	e.status = StatusSuccess
	e.dataUpdatedAt = e.clock.Now()
	e.isInvalidated = false
	observers := e.snapshotObserversLocked()
	e.mu.Unlock()

	e.log.V(1).Info("updateData", "arg", e.arg)
	broadcastStateChanged(observers)
}

// Invalidate implements spec.md §4.1 op invalidate: marks the entry
// stale and, if observed, starts a refetch immediately; otherwise the
// invalidation takes effect on the next subscription.
func (e *Execution[A, R]) Invalidate() {
	e.mu.Lock()
	e.isInvalidated = true
	hasObservers := len(e.observers) > 0
	e.mu.Unlock()

	e.log.V(1).Info("invalidate", "arg", e.arg, "hasObservers", hasObservers)
	if hasObservers {
		go func() { _, _ = e.Refetch(context.Background()) }()
	}
}

func (e *Execution[A, R]) snapshotObserversLocked() []*Observer[A, R] {
	cp := make([]*Observer[A, R], len(e.observers))
	copy(cp, e.observers)
	return cp
}

func broadcastStateChanged[A comparable, R any](observers []*Observer[A, R]) {
	for _, o := range observers {
		o.emitStateChanged()
	}
}

// Cancel implements spec.md §4.1 op cancel. If an attempt is in
// flight, its context is cancelled and the entry is reset to an
// idle-like state synchronously — regardless of whether the async
// function itself honors the cancellation signal (spec.md §5).
func (e *Execution[A, R]) Cancel() {
	e.mu.Lock()
	att := e.inFlight
	if att == nil {
		e.mu.Unlock()
		return
	}
	att.cancel()
	e.inFlight = nil
	e.status = StatusIdle
	e.err = nil
	e.hasData = false
	var zero R
	e.data = zero
	e.dataUpdatedAt = time.Time{}
	observers := e.snapshotObserversLocked()
	e.mu.Unlock()

	e.log.V(1).Info("cancel", "arg", e.arg, "attempt", att.id)
	broadcastStateChanged(observers)
}

// Refetch implements spec.md §4.1 op refetch: starts a new attempt, or
// returns the result of the one already in flight (deduplication
// invariant #4). It blocks until the attempt completes, is
// superseded, or ctx is cancelled, whichever happens first.
func (e *Execution[A, R]) Refetch(ctx context.Context) (R, error) {
	e.mu.Lock()
	if e.inFlight != nil {
		att := e.inFlight
		e.mu.Unlock()
		return e.await(ctx, att)
	}

	attCtx, cancel := context.WithCancel(context.Background())
	att := &attempt[R]{
		id:     uuid.New(),
		ctx:    attCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	e.inFlight = att
	if e.status != StatusSuccess {
		e.status = StatusLoading
		e.err = nil
	}
	observers := e.snapshotObserversLocked()
	e.mu.Unlock()

	e.log.V(1).Info("refetch start", "arg", e.arg, "attempt", att.id)
	broadcastStateChanged(observers)

	go e.runAttempt(att)

	return e.await(ctx, att)
}

// await blocks until att completes or ctx is done. If att's own
// context is cancelled (via Execution.Cancel), every waiter is
// released immediately with a CancellationError even if the
// underlying async function never returns (spec.md §5: a
// non-cooperative function's late result is silently discarded).
func (e *Execution[A, R]) await(ctx context.Context, att *attempt[R]) (R, error) {
	select {
	case <-att.done:
		return att.result.val, att.result.err
	case <-att.ctx.Done():
		var zero R
		return zero, &CancellationError{Cause: att.ctx.Err()}
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

func (e *Execution[A, R]) runAttempt(att *attempt[R]) {
	val, err := e.fetch(att.ctx, e.arg)
	e.finishAttempt(att, val, err)
}

func (e *Execution[A, R]) finishAttempt(att *attempt[R], val R, err error) {
	att.result = execResult[R]{val: val, err: err}
	defer close(att.done)

	e.mu.Lock()
	if e.inFlight == nil || e.inFlight.id != att.id {
		// Superseded by Cancel or a later attempt: drop silently,
		// no state mutation, no broadcast (spec.md §4.1 "Supersession").
		e.mu.Unlock()
		e.log.V(1).Info("attempt superseded, dropping", "arg", e.arg, "attempt", att.id)
		return
	}

	if att.ctx.Err() != nil {
		// Our own context was cancelled but Cancel() hadn't already
		// reset the entry. The attempt context derives from
		// context.Background and Cancel() clears inFlight under the
		// same lock, so this is a defensive path. Apply the same idle
		// reset here.
		e.inFlight = nil
		e.status = StatusIdle
		e.err = nil
		e.hasData = false
		var zero R
		e.data = zero
		e.dataUpdatedAt = time.Time{}
		observers := e.snapshotObserversLocked()
		e.mu.Unlock()
		broadcastStateChanged(observers)
		return
	}

	if err != nil {
		e.inFlight = nil
		e.err = err
		e.status = StatusError
		observers := e.snapshotObserversLocked()
		arg := e.arg
		e.mu.Unlock()

		e.log.V(1).Info("attempt failed", "arg", arg, "attempt", att.id, "error", err)
		fc := FailureContext[A]{Arg: arg, Error: err}
		for _, o := range observers {
			o.handleExecutionFailure(fc)
		}
		broadcastStateChanged(observers)
		return
	}

	e.inFlight = nil
	e.data = val
	e.hasData = true
	e.err = nil
	e.status = StatusSuccess
	e.dataUpdatedAt = e.clock.Now()
	e.isInvalidated = false
	observers := e.snapshotObserversLocked()
	arg := e.arg
	e.mu.Unlock()

	e.log.V(1).Info("attempt succeeded", "arg", arg, "attempt", att.id)
	sc := SuccessContext[A, R]{Arg: arg, Result: val}
	for _, o := range observers {
		o.handleExecutionSuccess(e, sc)
	}
	broadcastStateChanged(observers)
}
