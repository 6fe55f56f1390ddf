// Package observability exposes workflow execution counters as prometheus
// metrics, fed through the engine's lifecycle hooks. It does no exposition
// of its own; callers mount the registry they provide.
package observability
