// Package ratelimit provides adaptive per-client admission control for
// HTTP handlers. An AdaptiveLimiter scores each client by its recent error
// responses over a rolling window; the Middleware sizes a per-client token
// bucket from that score, so well-behaved clients keep full quota while
// clients generating errors are throttled harder until their window clears.
package ratelimit
