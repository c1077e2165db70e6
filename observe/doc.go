// Package observe provides observability primitives for query and mutation
// execution.
//
// It is a pure instrumentation library: no caching, no scheduling, no I/O
// beyond exporter setup. The query package wraps fetchers and mutation
// functions with a Middleware built from an Observer.
package observe
