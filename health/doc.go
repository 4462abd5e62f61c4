// Package health exposes the operator-facing view of the resilience layer:
// a Monitor that samples connection pools for saturation, a CircuitChecker
// that reports open breakers, reachability pings for the database and
// Redis, and an Aggregator with HTTP probe handlers that fold everything
// into one composite report.
package health
