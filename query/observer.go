package query

import (
	"context"
	"sync"
)

// Observer is a subscriber bound to one Endpoint at a time (spec.md
// §3, §4.4 "Query Observer"). It tracks the Execution it currently
// mirrors and the most recent Execution observed in Success, and
// forwards success/failure callbacks plus a stateChanged signal to a
// rendering host.
type Observer[A comparable, R any] struct {
	endpoint *Endpoint[A, R]
	cfg      queryConfig[A, R]

	mu             sync.Mutex
	current        *Execution[A, R]
	lastSuccessful *Execution[A, R]
	arg            A
	hasArg         bool

	stateChangedSubs []func()
	succeededSubs    []func(SuccessContext[A, R])
	failedSubs       []func(FailureContext[A])
}

func newObserver[A comparable, R any](ep *Endpoint[A, R], cfg queryConfig[A, R]) *Observer[A, R] {
	return &Observer[A, R]{endpoint: ep, cfg: cfg}
}

// OnStateChanged registers a rendering-host callback fired once per
// public state transition of the bound Execution (spec.md §6
// "Rendering host contract"). Returns an unsubscribe function.
func (o *Observer[A, R]) OnStateChanged(fn func()) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stateChangedSubs = append(o.stateChangedSubs, fn)
	idx := len(o.stateChangedSubs) - 1
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if idx < len(o.stateChangedSubs) {
			o.stateChangedSubs = append(o.stateChangedSubs[:idx], o.stateChangedSubs[idx+1:]...)
		}
	}
}

// OnSucceeded registers a callback fired whenever the bound Execution
// completes with success.
func (o *Observer[A, R]) OnSucceeded(fn func(SuccessContext[A, R])) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.succeededSubs = append(o.succeededSubs, fn)
	idx := len(o.succeededSubs) - 1
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if idx < len(o.succeededSubs) {
			o.succeededSubs = append(o.succeededSubs[:idx], o.succeededSubs[idx+1:]...)
		}
	}
}

// OnFailed registers a callback fired whenever the bound Execution
// completes with failure.
func (o *Observer[A, R]) OnFailed(fn func(FailureContext[A])) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failedSubs = append(o.failedSubs, fn)
	idx := len(o.failedSubs) - 1
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if idx < len(o.failedSubs) {
			o.failedSubs = append(o.failedSubs[:idx], o.failedSubs[idx+1:]...)
		}
	}
}

func (o *Observer[A, R]) emitStateChanged() {
	o.mu.Lock()
	subs := make([]func(), len(o.stateChangedSubs))
	copy(subs, o.stateChangedSubs)
	o.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (o *Observer[A, R]) handleExecutionSuccess(exec *Execution[A, R], sc SuccessContext[A, R]) {
	o.mu.Lock()
	if o.current == exec {
		o.lastSuccessful = exec
	}
	cfg := o.cfg
	subs := make([]func(SuccessContext[A, R]), len(o.succeededSubs))
	copy(subs, o.succeededSubs)
	o.mu.Unlock()

	if cfg.onSuccess != nil {
		cfg.onSuccess(sc)
	}
	for _, fn := range subs {
		fn(sc)
	}
}

func (o *Observer[A, R]) handleExecutionFailure(fc FailureContext[A]) {
	o.mu.Lock()
	cfg := o.cfg
	subs := make([]func(FailureContext[A]), len(o.failedSubs))
	copy(subs, o.failedSubs)
	o.mu.Unlock()

	if cfg.onFailure != nil {
		cfg.onFailure(fc)
	}
	for _, fn := range subs {
		fn(fc)
	}
}

// bind resolves arg through the cache, rebinds the observer to the
// returned Execution if it differs from the current one, and reports
// whether the caller should now kick off a refetch (spec.md §4.4
// "setArg"/"setArgAsync").
func (o *Observer[A, R]) bind(arg A) (exec *Execution[A, R], needsRefetch bool) {
	newExec := o.endpoint.cache.GetOrAdd(arg)

	o.mu.Lock()
	old := o.current
	sameExec := old == newExec
	o.arg = arg
	o.hasArg = true
	if !sameExec {
		o.current = newExec
	}
	cfg := o.cfg
	o.mu.Unlock()

	if sameExec {
		return newExec, false
	}

	if old != nil {
		old.RemoveObserver(o)
	}
	newExec.AddObserver(o)
	o.emitStateChanged()

	staleTime := cfg.resolveStaleTime(o.endpoint.defaultStaleTime())
	snap := newExec.Snapshot()
	needsRefetch = !snap.IsFetching && newExec.IsStale(staleTime)
	return newExec, needsRefetch
}

func (o *Observer[A, R]) bindUncached(arg A) *Execution[A, R] {
	newExec := o.endpoint.cache.AddUncached(arg)

	o.mu.Lock()
	old := o.current
	o.current = newExec
	o.arg = arg
	o.hasArg = true
	o.mu.Unlock()

	if old != nil {
		old.RemoveObserver(o)
	}
	newExec.AddObserver(o)
	o.emitStateChanged()
	return newExec
}

// SetArg binds the observer to arg, fire-and-forget: it rebinds
// synchronously and, if a refetch is needed, starts it in the
// background without waiting for it to complete (spec.md §4.4
// "setArg"). Errors are swallowed, per spec.md §7.
func (o *Observer[A, R]) SetArg(arg A) {
	exec, needsRefetch := o.bind(arg)
	if needsRefetch {
		go func() { _, _ = exec.Refetch(context.Background()) }()
	}
}

// SetArgAsync binds the observer to arg and, if the bound Execution is
// stale and not already fetching, awaits the resulting refetch
// (spec.md §4.4 "setArgAsync").
func (o *Observer[A, R]) SetArgAsync(ctx context.Context, arg A) error {
	exec, needsRefetch := o.bind(arg)
	if !needsRefetch {
		return nil
	}
	_, err := exec.Refetch(ctx)
	return err
}

// Trigger switches the observer to a freshly allocated, uncached
// Execution for arg and refetches unconditionally, fire-and-forget
// (spec.md §4.4 "trigger" / glossary "Trigger").
func (o *Observer[A, R]) Trigger(arg A) {
	exec := o.bindUncached(arg)
	go func() { _, _ = exec.Refetch(context.Background()) }()
}

// TriggerAsync is the awaited form of Trigger.
func (o *Observer[A, R]) TriggerAsync(ctx context.Context, arg A) (R, error) {
	exec := o.bindUncached(arg)
	return exec.Refetch(ctx)
}

// Refetch delegates to the current Execution's Refetch, fire-and-forget.
// A no-op if the observer has no current Execution.
func (o *Observer[A, R]) Refetch() {
	cur := o.currentExecution()
	if cur == nil {
		return
	}
	go func() { _, _ = cur.Refetch(context.Background()) }()
}

// RefetchAsync delegates to the current Execution's Refetch. Returns a
// MisuseError (spec.md §7) if the observer has no current Execution —
// a loud, non-recoverable signal rather than a silent no-op.
func (o *Observer[A, R]) RefetchAsync(ctx context.Context) (R, error) {
	cur := o.currentExecution()
	if cur == nil {
		var zero R
		return zero, &MisuseError{Msg: "RefetchAsync called with no current execution; call SetArg first"}
	}
	return cur.Refetch(ctx)
}

// Cancel delegates to the current Execution's Cancel. A no-op if the
// observer has no current Execution.
func (o *Observer[A, R]) Cancel() {
	cur := o.currentExecution()
	if cur == nil {
		return
	}
	cur.Cancel()
}

// Detach leaves the current Execution's observer set and clears
// current. Idempotent (spec.md §4.4 "detach").
func (o *Observer[A, R]) Detach() {
	o.mu.Lock()
	cur := o.current
	o.current = nil
	o.hasArg = false
	o.mu.Unlock()
	if cur != nil {
		cur.RemoveObserver(o)
	}
}

func (o *Observer[A, R]) currentExecution() *Execution[A, R] {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Arg returns the currently bound argument, if any.
func (o *Observer[A, R]) Arg() (arg A, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.arg, o.hasArg
}

func (o *Observer[A, R]) currentSnapshot() (Snapshot[R], bool) {
	cur := o.currentExecution()
	if cur == nil {
		return Snapshot[R]{Status: StatusIdle}, false
	}
	return cur.Snapshot(), true
}

// Status is current?.status ?? Idle (spec.md §4.4).
func (o *Observer[A, R]) Status() Status {
	snap, _ := o.currentSnapshot()
	return snap.Status
}

// Data is current?.data (spec.md §4.4).
func (o *Observer[A, R]) Data() (R, bool) {
	snap, _ := o.currentSnapshot()
	return snap.Data, snap.HasData
}

// LastData is current.data while Success, else lastSuccessful?.data
// (spec.md §4.4 "lastData update rule").
func (o *Observer[A, R]) LastData() (R, bool) {
	o.mu.Lock()
	cur := o.current
	last := o.lastSuccessful
	o.mu.Unlock()

	if cur != nil {
		snap := cur.Snapshot()
		if snap.Status == StatusSuccess {
			return snap.Data, true
		}
	}
	if last != nil {
		snap := last.Snapshot()
		return snap.Data, snap.HasData
	}
	var zero R
	return zero, false
}

// Err is current?.error (spec.md §4.4).
func (o *Observer[A, R]) Err() error {
	snap, _ := o.currentSnapshot()
	return snap.Err
}

// IsLoading is current?.status == Loading (spec.md §4.4).
func (o *Observer[A, R]) IsLoading() bool {
	snap, _ := o.currentSnapshot()
	return snap.Status == StatusLoading
}

// IsFetching is current?.inFlight != nil (spec.md §4.4).
func (o *Observer[A, R]) IsFetching() bool {
	snap, _ := o.currentSnapshot()
	return snap.IsFetching
}

// IsSuccess reports whether the bound Execution's status is Success.
func (o *Observer[A, R]) IsSuccess() bool {
	snap, _ := o.currentSnapshot()
	return snap.Status == StatusSuccess
}

// IsError reports whether the bound Execution's status is Error.
func (o *Observer[A, R]) IsError() bool {
	snap, _ := o.currentSnapshot()
	return snap.Status == StatusError
}

// IsUninitialized reports whether the observer has no current
// Execution yet (no argument has ever been set).
func (o *Observer[A, R]) IsUninitialized() bool {
	_, has := o.currentSnapshot()
	return !has
}

// HasData reports whether the bound Execution carries data, even if
// its current status is Loading (a stale refetch) or Error (a retry
// of a previously successful argument).
func (o *Observer[A, R]) HasData() bool {
	snap, _ := o.currentSnapshot()
	return snap.HasData
}
