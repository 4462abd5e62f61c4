// Package cache provides the stampede-protected cache layer: a Store
// contract over Redis (with an in-memory implementation for tests and
// fallbacks) and a SingleFlight wrapper that collapses concurrent misses
// for the same key into one upstream fetch.
package cache
