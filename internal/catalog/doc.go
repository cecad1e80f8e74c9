// Package catalog walks the cache root and aggregates entries for the
// dashboard. A directory whose subtree holds at least one regular file is
// reported as a single entry keyed by its path from the root; directories
// without files are descended into. Staging directories left by in-flight
// writes are never reported.
package catalog
