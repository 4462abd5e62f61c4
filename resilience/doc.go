// Package resilience protects calls to unreliable dependencies from
// cascading failure.
//
// It provides the wrap-and-call half of the operational resilience layer:
//
//   - Circuit Breaker: a per-dependency closed/open/half-open state machine
//     that short-circuits calls while the dependency is judged unhealthy.
//
//   - Retry: re-invokes an operation on transient faults with exponential
//     backoff and jitter; permanent errors propagate immediately.
//
//   - IsTransient: the shared classifier separating retryable
//     infrastructure faults from permanent business errors.
//
//   - Timeout: a per-attempt deadline wrapper.
//
//   - Registry: one named breaker per guarded dependency, feeding the
//     health layer's composite report.
//
// # Usage
//
// The canonical composition is breaker wraps retry wraps the raw call, so
// transient failures are absorbed locally and only sustained failure trips
// the breaker:
//
//	cb := registry.GetOrCreate("postgres", resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    OpenTimeout:      30 * time.Second,
//	})
//	retry := resilience.NewRetry(resilience.RetryConfig{MaxRetries: 3})
//
//	exec := resilience.NewExecutor(
//	    resilience.WithName("load-profile"),
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(2*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return loadProfile(ctx, id)
//	})
//
// For calls that can degrade to a cached or default value when the circuit
// is open, use the generic Do helper with a fallback producer.
package resilience
