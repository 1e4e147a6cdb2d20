// Package query is the caching and lifecycle engine behind an
// asynchronous query-state manager: it turns a call site of the shape
//
//	func(ctx context.Context, arg A) (R, error)
//
// into an observable, cache-backed, deduplicated state machine. An
// Endpoint wraps the function and owns a Cache of per-argument
// Executions; Observers bind to one Execution at a time and expose
// its status, data and error to a rendering host.
//
// The package has no knowledge of HTTP, JSON, or any UI framework —
// those are external collaborators. See the uiquery and examples
// packages for how a caller wires one up.
package query
