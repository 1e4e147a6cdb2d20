package query

import (
	"time"

	"github.com/go-logr/logr"
)

// SuccessContext is passed to a QueryOptions.OnSuccess callback.
type SuccessContext[A comparable, R any] struct {
	Arg    A
	Result R
}

// FailureContext is passed to a QueryOptions.OnFailure callback.
type FailureContext[A comparable] struct {
	Arg   A
	Error error
}

// endpointConfig holds the resolved EndpointOptions for an Endpoint.
type endpointConfig[A comparable] struct {
	defaultStaleTime time.Duration
	keyEqual         func(A, A) bool
	logger           logr.Logger
	clock            Clock
}

// EndpointOption configures an Endpoint at construction time, following
// the teacher's functional-options convention (ws.Option, fetch.Options).
type EndpointOption[A comparable] func(*endpointConfig[A])

// WithDefaultStaleTime sets the staleness window used by Observers
// that don't override it with their own WithStaleTime option.
func WithDefaultStaleTime[A comparable](d time.Duration) EndpointOption[A] {
	return func(c *endpointConfig[A]) { c.defaultStaleTime = d }
}

// WithKeyEquality installs a semantic equality test layered over the
// comparable-keyed cache map (spec.md §3 "equality is the cache's
// key-equality"). When unset, plain Go map equality (==) is used.
func WithKeyEquality[A comparable](eq func(A, A) bool) EndpointOption[A] {
	return func(c *endpointConfig[A]) { c.keyEqual = eq }
}

// WithLogger attaches a structured logger; every public state
// transition spec.md names is logged at V(1).
func WithLogger[A comparable](l logr.Logger) EndpointOption[A] {
	return func(c *endpointConfig[A]) { c.logger = l }
}

// WithClock overrides the wall clock used for staleness checks.
// Intended for tests.
func WithClock[A comparable](clk Clock) EndpointOption[A] {
	return func(c *endpointConfig[A]) { c.clock = clk }
}

func newEndpointConfig[A comparable](opts []EndpointOption[A]) endpointConfig[A] {
	cfg := endpointConfig[A]{
		defaultStaleTime: 0,
		logger:           logr.Discard(),
		clock:            RealClock{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// queryConfig holds the resolved QueryOptions for one Observer.
type queryConfig[A comparable, R any] struct {
	staleTime    *time.Duration // nil means "use endpoint default"
	onSuccess    func(SuccessContext[A, R])
	onFailure    func(FailureContext[A])
}

// QueryOption configures a single Observer, overriding endpoint-level
// defaults (spec.md §3 "Query Options").
type QueryOption[A comparable, R any] func(*queryConfig[A, R])

// WithStaleTime overrides the endpoint's default stale time for one
// Observer. A zero duration means "always stale".
func WithStaleTime[A comparable, R any](d time.Duration) QueryOption[A, R] {
	return func(c *queryConfig[A, R]) { c.staleTime = &d }
}

// WithOnSuccess registers a callback fired whenever the bound
// Execution completes with success, before the Observer's
// StateChanged fires (spec.md §4.4 "Callback ordering").
func WithOnSuccess[A comparable, R any](fn func(SuccessContext[A, R])) QueryOption[A, R] {
	return func(c *queryConfig[A, R]) { c.onSuccess = fn }
}

// WithOnFailure registers a callback fired whenever the bound
// Execution completes with failure, before the Observer's
// StateChanged fires.
func WithOnFailure[A comparable, R any](fn func(FailureContext[A])) QueryOption[A, R] {
	return func(c *queryConfig[A, R]) { c.onFailure = fn }
}

func newQueryConfig[A comparable, R any](opts []QueryOption[A, R]) queryConfig[A, R] {
	var cfg queryConfig[A, R]
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c queryConfig[A, R]) resolveStaleTime(defaultStaleTime time.Duration) time.Duration {
	if c.staleTime != nil {
		return *c.staleTime
	}
	return defaultStaleTime
}
