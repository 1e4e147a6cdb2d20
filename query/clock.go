package query

import "time"

// Clock abstracts wall-clock time so staleness checks are testable
// without real sleeps. Resolves spec.md §9's open question on the
// staleness clock source in favor of dependency injection.
type Clock interface {
	Now() time.Time
}

// RealClock is the default Clock, backed by time.Now.
type RealClock struct{}

// Now returns the current wall-clock time.
func (RealClock) Now() time.Time { return time.Now() }
