package resilience

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/penpalhq/keel/observe"
)

// Executor composes the resilience patterns around one guarded operation.
//
// The canonical composition is breaker(retry(timeout(raw))): repeated
// transient failures are absorbed by the retry layer first, and only
// sustained failure trips the breaker. An optional admission limiter sits
// outermost and rejects before any work happens.
type Executor struct {
	name    string
	breaker *CircuitBreaker
	retry   *Retry
	limiter *rate.Limiter
	timeout *Timeout
	tracer  trace.Tracer
	metrics *observe.Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{name: "operation"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithName names the guarded operation for spans and metrics.
func WithName(name string) ExecutorOption {
	return func(e *Executor) {
		e.name = name
	}
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithLimiter adds an admission rate limiter to the executor.
func WithLimiter(l *rate.Limiter) ExecutorOption {
	return func(e *Executor) {
		e.limiter = l
	}
}

// WithTimeout adds a per-attempt deadline to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTracer records a span per guarded execution.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = t
	}
}

// WithMetrics records retry attempts for the guarded operation.
func WithMetrics(m *observe.Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// Execute runs the operation through all configured patterns.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "keel.exec."+e.name,
			trace.WithAttributes(attribute.String("operation", e.name)),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()
	}

	err := e.run(ctx, op)

	if span != nil {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
	return err
}

func (e *Executor) run(ctx context.Context, op func(context.Context) error) error {
	// Build the chain inside out: timeout, retry, breaker, limiter.
	execute := op

	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		attempts := 0
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, func(ctx context.Context) error {
				attempts++
				if e.metrics != nil {
					e.metrics.RecordRetryAttempt(ctx, e.name, attempts)
				}
				return inner(ctx)
			})
		}
	}

	if e.breaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.breaker.Execute(ctx, inner)
		}
	}

	if e.limiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			if !e.limiter.Allow() {
				return ErrRateLimited
			}
			return inner(ctx)
		}
	}

	return execute(ctx)
}
