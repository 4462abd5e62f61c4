package config

import (
	"github.com/penpalhq/keel/health"
	"github.com/penpalhq/keel/observe"
	"github.com/penpalhq/keel/ratelimit"
	"github.com/penpalhq/keel/resilience"
)

// CircuitBreaker translates the circuit section into a breaker config.
func (c Config) CircuitBreaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold: c.Circuit.FailureThreshold,
		SuccessThreshold: c.Circuit.SuccessThreshold,
		OpenTimeout:      c.Circuit.OpenTimeout,
		TrialWindow:      c.Circuit.TrialWindow,
	}
}

// Retryer translates the retry section into a retry config.
func (c Config) Retryer() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
}

// AdaptiveLimiter translates the ratelimit section into a limiter config.
func (c Config) AdaptiveLimiter() ratelimit.AdaptiveConfig {
	return ratelimit.AdaptiveConfig{
		Window:        c.RateLimit.Window,
		SweepInterval: c.RateLimit.SweepInterval,
	}
}

// Middleware translates the ratelimit section into a middleware config.
func (c Config) Middleware() ratelimit.MiddlewareConfig {
	return ratelimit.MiddlewareConfig{
		BaseRate:  c.RateLimit.BaseRate,
		BaseBurst: c.RateLimit.BaseBurst,
	}
}

// PoolMonitor translates the pool section into a monitor config.
func (c Config) PoolMonitor() health.MonitorConfig {
	return health.MonitorConfig{
		Interval:      c.Pool.Interval,
		WarningRatio:  c.Pool.WarningRatio,
		CriticalRatio: c.Pool.CriticalRatio,
	}
}

// Observer translates the observe section into a telemetry config.
func (c Config) Observer() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingExporter != "" && c.Observe.TracingExporter != "none",
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.MetricsExporter != "" && c.Observe.MetricsExporter != "none",
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}
