package uiquery

import (
	"context"

	"goquery/query"
)

// AsyncState is a UI-friendly snapshot of a query.Observer: the
// derived flags a rendering host re-reads on every stateChanged
// notification.
type AsyncState[R any] struct {
	Data     R
	HasData  bool
	Loading  bool
	Fetching bool
	Err      error
	Status   query.Status
}

// AsyncStore is a UI adapter over one query.Observer that the caller
// creates and owns: it forwards argument changes to the observer and
// mirrors its derived state into a Store a view can subscribe to. It
// does not create, replace or detach observers. It replaces the
// teacher's hand-rolled Loading/Data/Error booleans with a direct
// projection of the Observer's own state machine.
type AsyncStore[A comparable, R any] struct {
	*Store[AsyncState[R]]

	observer *query.Observer[A, R]
	unsub    func()
}

// NewAsyncStore creates an AsyncStore bound to observer. The caller
// retains ownership of observer and must call Close to unsubscribe
// (the store does not detach the observer — that decision belongs to
// whoever created it, per spec §6's "adapter" contract).
func NewAsyncStore[A comparable, R any](observer *query.Observer[A, R]) *AsyncStore[A, R] {
	as := &AsyncStore[A, R]{
		Store:    NewStore(snapshotOf(observer)),
		observer: observer,
	}
	as.unsub = observer.OnStateChanged(func() {
		as.Set(snapshotOf(observer))
	})
	return as
}

func snapshotOf[A comparable, R any](o *query.Observer[A, R]) AsyncState[R] {
	data, hasData := o.Data()
	return AsyncState[R]{
		Data:     data,
		HasData:  hasData,
		Loading:  o.IsLoading(),
		Fetching: o.IsFetching(),
		Err:      o.Err(),
		Status:   o.Status(),
	}
}

// SetArg rebinds the underlying observer and blocks until any
// resulting refetch completes (spec §6: "on argument change → call
// setArg").
func (as *AsyncStore[A, R]) SetArg(ctx context.Context, arg A) error {
	return as.observer.SetArgAsync(ctx, arg)
}

// Close unsubscribes from the underlying observer's stateChanged
// signal. It does not detach the observer itself.
func (as *AsyncStore[A, R]) Close() {
	if as.unsub != nil {
		as.unsub()
		as.unsub = nil
	}
}
