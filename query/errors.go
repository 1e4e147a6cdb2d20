package query

import "errors"

// ErrCancelled is the sentinel wrapped by CancellationError; test with
// errors.Is(err, ErrCancelled).
var ErrCancelled = errors.New("query: attempt cancelled")

// CancellationError is returned to a caller awaiting an attempt that
// was cancelled via Execution.Cancel or Observer.Cancel. It is never
// recorded as the Execution's error — a cancelled entry resets to
// StatusIdle instead (spec.md §4.1 step 4).
type CancellationError struct {
	// Cause is the underlying context error, usually context.Canceled.
	Cause error
}

func (e *CancellationError) Error() string {
	if e.Cause == nil {
		return ErrCancelled.Error()
	}
	return ErrCancelled.Error() + ": " + e.Cause.Error()
}

func (e *CancellationError) Unwrap() error { return ErrCancelled }

// MisuseError is the spec.md §7 "programmer error" kind: a loud,
// non-recoverable signal that the caller used the API incorrectly,
// e.g. RefetchAsync on an Observer with no current Execution.
type MisuseError struct {
	Msg string
}

func (e *MisuseError) Error() string { return "query: misuse: " + e.Msg }
