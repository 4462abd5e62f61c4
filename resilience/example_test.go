package resilience_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/penpalhq/keel/resilience"
)

func ExampleCircuitBreaker() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	})

	dbDown := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return dbDown
		})
		fmt.Println(err)
	}
	fmt.Println("state:", cb.State())

	// Output:
	// connection refused
	// connection refused
	// resilience: circuit breaker is open
	// state: open
}

func ExampleDo() {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenTimeout:      time.Minute,
	})

	// Trip the breaker.
	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("redis down")
	})

	// While open, Do serves the fallback instead of calling the dependency.
	count, err := resilience.Do(context.Background(), cb,
		func(ctx context.Context) (int, error) { return 0, errors.New("unreachable") },
		func() int { return -1 },
	)
	fmt.Println(count, err)

	// Output:
	// -1 <nil>
}

func ExampleRetry() {
	r := resilience.NewRetry(resilience.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	})

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return context.DeadlineExceeded // transient
		}
		return nil
	})
	fmt.Println(attempts, err)

	// Output:
	// 3 <nil>
}

func ExampleNewExecutor() {
	reg := resilience.NewRegistry(resilience.RegistryConfig{})
	cb := reg.GetOrCreate("postgres", resilience.CircuitBreakerConfig{})

	exec := resilience.NewExecutor(
		resilience.WithName("load-letter"),
		resilience.WithCircuitBreaker(cb),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{BaseDelay: time.Millisecond})),
		resilience.WithTimeout(time.Second),
	)

	err := exec.Execute(context.Background(), func(ctx context.Context) error {
		return nil // the guarded database call
	})
	fmt.Println(err)

	// Output:
	// <nil>
}
