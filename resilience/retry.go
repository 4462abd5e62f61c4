package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/penpalhq/keel/observe"
)

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt, so the
	// operation runs at most MaxRetries+1 times.
	// Default: 3
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	// Default: 100ms
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	// Default: 10s
	MaxDelay time.Duration

	// RetryIf decides whether an error is worth retrying.
	// Default: IsTransient
	RetryIf func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Logger, when set, records successes that needed more than one attempt.
	Logger observe.Logger
}

// Retry re-invokes a fallible operation on transient faults with
// exponential backoff and jitter. Attempts for a single call are strictly
// sequential; permanent errors propagate unchanged without a retry.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry executor.
func NewRetry(config RetryConfig) *Retry {
	// Apply defaults
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Second
	}
	if config.RetryIf == nil {
		config.RetryIf = IsTransient
	}

	return &Retry{config: config}
}

// Execute runs the operation with retry logic.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)

		if err == nil {
			if attempt > 0 && r.config.Logger != nil {
				r.config.Logger.Info(ctx, "operation succeeded after retry",
					observe.Field{Key: "attempts", Value: attempt + 1})
			}
			return nil
		}

		// Budget exhausted or permanent error: propagate unchanged.
		if attempt >= r.config.MaxRetries || !r.config.RetryIf(err) {
			return err
		}

		delay := r.delay(attempt)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// delay computes min(base*2^attempt + jitter, max) with jitter drawn
// uniformly from [0, 0.3*exponential).
func (r *Retry) delay(attempt int) time.Duration {
	exp := time.Duration(float64(r.config.BaseDelay) * math.Pow(2, float64(attempt)))
	if exp <= 0 || exp > r.config.MaxDelay {
		return r.config.MaxDelay
	}

	delay := exp
	if spread := int64(float64(exp) * 0.3); spread > 0 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		delay += time.Duration(rand.Int64N(spread))
	}
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
