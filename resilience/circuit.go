package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow through normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all calls.
	StateOpen
	// StateHalfOpen means the circuit is probing whether the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of half-open successes needed to close.
	// Default: 1
	SuccessThreshold int

	// OpenTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	OpenTimeout time.Duration

	// TrialWindow is the maximum time the circuit may sit half-open while
	// accumulating successes. If it lapses before SuccessThreshold is
	// reached, the circuit re-opens. Default: 2 * OpenTimeout
	TrialWindow time.Duration

	// HalfOpenMaxInFlight caps concurrent trial calls while half-open.
	// Default: 1
	HalfOpenMaxInFlight int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(from, to State)
}

// CircuitBreaker guards calls to a single unreliable dependency.
//
// The breaker judges call outcomes only: a trial call that fails with a
// permanent business error still counts against the circuit. Callers should
// keep validation-style errors out of the breaker entirely rather than
// expecting it to classify them.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	lastFailure      time.Time
	halfOpenStart    time.Time
	halfOpenInFlight int
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = 30 * time.Second
	}
	if config.TrialWindow <= 0 {
		config.TrialWindow = 2 * config.OpenTimeout
	}
	if config.HalfOpenMaxInFlight <= 0 {
		config.HalfOpenMaxInFlight = 1
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Execute runs the operation through the circuit breaker.
//
// While open it returns ErrCircuitOpen without invoking the operation.
// Failures propagate unchanged to the caller; opening the circuit never
// hides the error that tripped it.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		cb.afterCall(err)
		return err
	}

	err := op(ctx)
	cb.afterCall(err)
	return err
}

// Do runs an operation returning a value through the breaker. The fallback
// producer is consulted only on open-circuit rejection; real failures from
// the operation propagate to the caller.
func Do[T any](ctx context.Context, cb *CircuitBreaker, op func(context.Context) (T, error), fallback func() T) (T, error) {
	var out T
	err := cb.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) && fallback != nil {
		return fallback(), nil
	}
	return out, err
}

// State returns the current circuit state. It also performs the time-based
// open-to-half-open promotion, so the answer truthfully reflects what the
// next call would see even between calls.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset forces the circuit closed with zeroed counters. Administrative use only.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.halfOpenInFlight = 0

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxInFlight {
			return ErrCircuitOpen
		}
		cb.halfOpenInFlight++
	}

	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state

	switch cb.state {
	case StateClosed:
		if err != nil {
			cb.failures++
			cb.lastFailure = time.Now()
			if cb.failures >= cb.config.FailureThreshold {
				cb.setStateLocked(StateOpen)
			}
		} else {
			// Any success while closed clears the failure streak.
			cb.failures = 0
		}

	case StateHalfOpen:
		if cb.halfOpenInFlight > 0 {
			cb.halfOpenInFlight--
		}
		if err != nil {
			// Failed trial: back to open with a fresh cooldown.
			cb.lastFailure = time.Now()
			cb.successes = 0
			cb.setStateLocked(StateOpen)
		} else {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.setStateLocked(StateClosed)
				cb.failures = 0
				cb.successes = 0
			}
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(oldState, cb.state)
	}
}

// currentStateLocked applies the time-based transitions before answering.
// Caller must hold the mutex.
func (cb *CircuitBreaker) currentStateLocked() State {
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) >= cb.config.OpenTimeout {
			cb.setStateLocked(StateHalfOpen)
			if cb.config.OnStateChange != nil {
				cb.config.OnStateChange(StateOpen, StateHalfOpen)
			}
		}
	case StateHalfOpen:
		if time.Since(cb.halfOpenStart) >= cb.config.TrialWindow {
			// Stuck half-open without enough successes: re-open.
			cb.lastFailure = time.Now()
			cb.setStateLocked(StateOpen)
			if cb.config.OnStateChange != nil {
				cb.config.OnStateChange(StateHalfOpen, StateOpen)
			}
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State) {
	cb.state = state
	if state == StateHalfOpen {
		cb.successes = 0
		cb.halfOpenInFlight = 0
		cb.halfOpenStart = time.Now()
	}
}

// Metrics returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		State:       cb.currentStateLocked(),
		Failures:    cb.failures,
		Successes:   cb.successes,
		LastFailure: cb.lastFailure,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	Successes   int
	LastFailure time.Time
}
