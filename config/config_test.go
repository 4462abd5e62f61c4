package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Circuit.FailureThreshold != 5 {
		t.Errorf("Circuit.FailureThreshold = %d, want 5", cfg.Circuit.FailureThreshold)
	}
	if cfg.Circuit.OpenTimeout != 30*time.Second {
		t.Errorf("Circuit.OpenTimeout = %v, want 30s", cfg.Circuit.OpenTimeout)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 100ms", cfg.Retry.BaseDelay)
	}
	if cfg.RateLimit.Window != 5*time.Minute {
		t.Errorf("RateLimit.Window = %v, want 5m", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.BaseBurst != 20 {
		t.Errorf("RateLimit.BaseBurst = %d, want 20", cfg.RateLimit.BaseBurst)
	}
	if cfg.Pool.WarningRatio != 0.8 || cfg.Pool.CriticalRatio != 0.95 {
		t.Errorf("Pool ratios = %v/%v, want 0.8/0.95", cfg.Pool.WarningRatio, cfg.Pool.CriticalRatio)
	}
	if cfg.Observe.MetricsExporter != "prometheus" {
		t.Errorf("Observe.MetricsExporter = %q, want prometheus", cfg.Observe.MetricsExporter)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KEEL_CIRCUIT_FAILURE_THRESHOLD", "7")
	t.Setenv("KEEL_RETRY_MAX_RETRIES", "5")
	t.Setenv("KEEL_RATELIMIT_BASE_RATE", "2.5")
	t.Setenv("KEEL_OBSERVE_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Circuit.FailureThreshold != 7 {
		t.Errorf("Circuit.FailureThreshold = %d, want 7", cfg.Circuit.FailureThreshold)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("Retry.MaxRetries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.RateLimit.BaseRate != 2.5 {
		t.Errorf("RateLimit.BaseRate = %v, want 2.5", cfg.RateLimit.BaseRate)
	}
	if cfg.Observe.LogLevel != "debug" {
		t.Errorf("Observe.LogLevel = %q, want debug", cfg.Observe.LogLevel)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keel.yaml")
	body := `
circuit:
  failure_threshold: 9
cache:
  addr: redis.internal:6379
  ttl: 90s
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Circuit.FailureThreshold != 9 {
		t.Errorf("Circuit.FailureThreshold = %d, want 9", cfg.Circuit.FailureThreshold)
	}
	if cfg.Cache.Addr != "redis.internal:6379" {
		t.Errorf("Cache.Addr = %q", cfg.Cache.Addr)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() with missing file succeeded")
	}
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	t.Setenv("KEEL_CIRCUIT_FAILURE_THRESHOLD", "0")

	if _, err := Load(""); err == nil {
		t.Error("Load() with zero failure threshold succeeded")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero failure threshold", func(c *Config) { c.Circuit.FailureThreshold = 0 }, "failure_threshold"},
		{"zero success threshold", func(c *Config) { c.Circuit.SuccessThreshold = 0 }, "success_threshold"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "max_retries"},
		{"zero retries", func(c *Config) { c.Retry.MaxRetries = 0 }, "max_retries"},
		{"base above max delay", func(c *Config) { c.Retry.BaseDelay = time.Minute }, "base_delay"},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "window"},
		{"zero burst", func(c *Config) { c.RateLimit.BaseBurst = 0 }, "base_burst"},
		{"warning above critical", func(c *Config) { c.Pool.WarningRatio = 0.99 }, "warning_ratio"},
		{"ratio above one", func(c *Config) { c.Pool.CriticalRatio = 1.5 }, "critical_ratio"},
		{"sample pct out of range", func(c *Config) { c.Observe.SamplePct = 2 }, "sample_pct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Bridges(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cb := cfg.CircuitBreaker()
	if cb.FailureThreshold != 5 || cb.OpenTimeout != 30*time.Second {
		t.Errorf("CircuitBreaker() = %+v", cb)
	}

	retry := cfg.Retryer()
	if retry.MaxRetries != 3 || retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retryer() = %+v", retry)
	}

	mon := cfg.PoolMonitor()
	if mon.WarningRatio != 0.8 || mon.CriticalRatio != 0.95 {
		t.Errorf("PoolMonitor() = %+v", mon)
	}

	obs := cfg.Observer()
	if obs.ServiceName != "keel" {
		t.Errorf("Observer().ServiceName = %q, want keel", obs.ServiceName)
	}
	if obs.Tracing.Enabled {
		t.Error("Observer().Tracing.Enabled = true with exporter none")
	}
	if !obs.Metrics.Enabled || obs.Metrics.Exporter != "prometheus" {
		t.Errorf("Observer().Metrics = %+v", obs.Metrics)
	}
	if err := obs.Validate(); err != nil {
		t.Errorf("Observer().Validate() error = %v", err)
	}
}
