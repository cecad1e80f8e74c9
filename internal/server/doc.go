// Package server hosts the Fiber HTTP service and its middleware chain:
// request IDs, panic recovery, access logging, Prometheus request metrics and
// the optional bearer credential check on /api routes. It also bootstraps the
// long-lived runtime pieces (disk store, memoized catalog, metrics) from the
// server configuration. Route handlers live in the routes subpackage and take
// their dependencies explicitly, so tests can build an app around a temporary
// cache root.
package server
