package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full configuration surface of the resilience layer. Every
// knob has a default; values come from an optional config file overlaid
// with KEEL_-prefixed environment variables (KEEL_CIRCUIT_OPEN_TIMEOUT,
// KEEL_RATELIMIT_BASE_RATE, ...).
type Config struct {
	Circuit   CircuitConfig   `mapstructure:"circuit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Observe   ObserveConfig   `mapstructure:"observe"`
}

// CircuitConfig holds circuit breaker defaults.
type CircuitConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
	TrialWindow      time.Duration `mapstructure:"trial_window"`
}

// RetryConfig holds retry executor defaults.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// RateLimitConfig holds adaptive rate limiter defaults.
type RateLimitConfig struct {
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	BaseRate      float64       `mapstructure:"base_rate"`
	BaseBurst     int           `mapstructure:"base_burst"`
}

// CacheConfig holds cache layer settings.
type CacheConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// PoolConfig holds pool monitor settings.
type PoolConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	WarningRatio  float64       `mapstructure:"warning_ratio"`
	CriticalRatio float64       `mapstructure:"critical_ratio"`
}

// ObserveConfig holds telemetry settings.
type ObserveConfig struct {
	ServiceName     string  `mapstructure:"service_name"`
	LogLevel        string  `mapstructure:"log_level"`
	MetricsExporter string  `mapstructure:"metrics_exporter"`
	TracingExporter string  `mapstructure:"tracing_exporter"`
	SamplePct       float64 `mapstructure:"sample_pct"`
}

// envPrefix namespaces environment variables.
const envPrefix = "KEEL"

// Load reads configuration from the given file path, overlaid with
// environment variables. An empty path skips the file entirely; a missing
// file at a non-empty path is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.success_threshold", 1)
	v.SetDefault("circuit.open_timeout", 30*time.Second)
	v.SetDefault("circuit.trial_window", time.Minute)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", 100*time.Millisecond)
	v.SetDefault("retry.max_delay", 10*time.Second)

	v.SetDefault("ratelimit.window", 5*time.Minute)
	v.SetDefault("ratelimit.sweep_interval", time.Minute)
	v.SetDefault("ratelimit.base_rate", 10.0)
	v.SetDefault("ratelimit.base_burst", 20)

	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("pool.interval", 30*time.Second)
	v.SetDefault("pool.warning_ratio", 0.8)
	v.SetDefault("pool.critical_ratio", 0.95)

	v.SetDefault("observe.service_name", "keel")
	v.SetDefault("observe.log_level", "info")
	v.SetDefault("observe.metrics_exporter", "prometheus")
	v.SetDefault("observe.tracing_exporter", "none")
	v.SetDefault("observe.sample_pct", 1.0)
}

// Validate rejects values that would misconfigure the resilience layer.
func (c Config) Validate() error {
	if c.Circuit.FailureThreshold < 1 {
		return errors.New("config: circuit.failure_threshold must be at least 1")
	}
	if c.Circuit.SuccessThreshold < 1 {
		return errors.New("config: circuit.success_threshold must be at least 1")
	}
	if c.Circuit.OpenTimeout <= 0 {
		return errors.New("config: circuit.open_timeout must be positive")
	}

	// NewRetry treats MaxRetries <= 0 as "use the default", so zero cannot
	// be expressed here; rejecting it keeps the configured value honest.
	if c.Retry.MaxRetries < 1 {
		return errors.New("config: retry.max_retries must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay <= 0 {
		return errors.New("config: retry delays must be positive")
	}
	if c.Retry.BaseDelay > c.Retry.MaxDelay {
		return errors.New("config: retry.base_delay must not exceed retry.max_delay")
	}

	if c.RateLimit.Window <= 0 {
		return errors.New("config: ratelimit.window must be positive")
	}
	if c.RateLimit.BaseRate <= 0 {
		return errors.New("config: ratelimit.base_rate must be positive")
	}
	if c.RateLimit.BaseBurst < 1 {
		return errors.New("config: ratelimit.base_burst must be at least 1")
	}

	if c.Pool.WarningRatio <= 0 || c.Pool.WarningRatio > 1 {
		return errors.New("config: pool.warning_ratio must be in (0, 1]")
	}
	if c.Pool.CriticalRatio <= 0 || c.Pool.CriticalRatio > 1 {
		return errors.New("config: pool.critical_ratio must be in (0, 1]")
	}
	if c.Pool.WarningRatio > c.Pool.CriticalRatio {
		return errors.New("config: pool.warning_ratio must not exceed pool.critical_ratio")
	}

	if c.Observe.SamplePct < 0 || c.Observe.SamplePct > 1 {
		return errors.New("config: observe.sample_pct must be in [0, 1]")
	}

	return nil
}
