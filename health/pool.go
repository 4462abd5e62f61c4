package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	"github.com/penpalhq/keel/observe"
)

// PoolSnapshot is one sample of a connection pool's state.
type PoolSnapshot struct {
	Open    int // connections currently established
	Idle    int // established but unused
	InUse   int // checked out by callers
	Waiting int // callers that waited for a connection since the last sample
	Max     int // configured pool ceiling

	// UsageRatio is Open over Max, 0 when Max is unknown.
	UsageRatio float64
}

// Pool exposes a named connection pool for monitoring.
type Pool interface {
	Name() string
	Snapshot() PoolSnapshot
}

// DBPool adapts a sqlx database pool.
type DBPool struct {
	name string
	db   *sqlx.DB

	mu            sync.Mutex
	lastWaitCount int64
}

// NewDBPool wraps db for monitoring under the given name.
func NewDBPool(name string, db *sqlx.DB) *DBPool {
	return &DBPool{name: name, db: db}
}

func (p *DBPool) Name() string { return p.name }

// Snapshot samples the pool. database/sql reports WaitCount cumulatively,
// so Waiting is the growth since the previous Snapshot call.
func (p *DBPool) Snapshot() PoolSnapshot {
	stats := p.db.Stats()

	p.mu.Lock()
	waited := stats.WaitCount - p.lastWaitCount
	p.lastWaitCount = stats.WaitCount
	p.mu.Unlock()

	snap := PoolSnapshot{
		Open:    stats.OpenConnections,
		Idle:    stats.Idle,
		InUse:   stats.InUse,
		Waiting: int(waited),
		Max:     stats.MaxOpenConnections,
	}
	if snap.Max > 0 {
		snap.UsageRatio = float64(snap.Open) / float64(snap.Max)
	}
	return snap
}

// RedisPool adapts a go-redis client pool.
type RedisPool struct {
	name   string
	client *redis.Client

	mu           sync.Mutex
	lastTimeouts uint32
}

// NewRedisPool wraps client for monitoring under the given name.
func NewRedisPool(name string, client *redis.Client) *RedisPool {
	return &RedisPool{name: name, client: client}
}

func (p *RedisPool) Name() string { return p.name }

// Snapshot samples the pool. go-redis reports Timeouts cumulatively over
// the client's lifetime, so Waiting is the growth since the previous
// Snapshot call, mirroring DBPool's WaitCount handling.
func (p *RedisPool) Snapshot() PoolSnapshot {
	stats := p.client.PoolStats()
	max := p.client.Options().PoolSize

	p.mu.Lock()
	waited := stats.Timeouts - p.lastTimeouts
	p.lastTimeouts = stats.Timeouts
	p.mu.Unlock()

	total := int(stats.TotalConns)
	idle := int(stats.IdleConns)

	snap := PoolSnapshot{
		Open:    total,
		Idle:    idle,
		InUse:   total - idle,
		Waiting: int(waited),
		Max:     max,
	}
	if max > 0 {
		snap.UsageRatio = float64(total) / float64(max)
	}
	return snap
}

const (
	// DefaultMonitorInterval is how often pools are sampled.
	DefaultMonitorInterval = 30 * time.Second

	// DefaultWarningRatio triggers a warning when open/max reaches it.
	DefaultWarningRatio = 0.8

	// DefaultCriticalRatio triggers a critical log when open/max reaches it.
	DefaultCriticalRatio = 0.95
)

// MonitorConfig configures the pool monitor.
type MonitorConfig struct {
	// Interval between samples. Default: 30s.
	Interval time.Duration

	// WarningRatio is the usage ratio that warrants a warning. Default: 0.8.
	WarningRatio float64

	// CriticalRatio is the usage ratio that warrants a critical log.
	// Default: 0.95.
	CriticalRatio float64

	// Logger receives saturation warnings. Default: no-op.
	Logger observe.Logger

	// Metrics receives per-sample gauge updates.
	Metrics *observe.Metrics
}

// Monitor samples registered pools on a fixed interval, logging saturation
// and updating gauges. It also implements Checker, so the aggregator can
// fold pool pressure into the composite health report.
type Monitor struct {
	interval      time.Duration
	warningRatio  float64
	criticalRatio float64
	logger        observe.Logger
	metrics       *observe.Metrics

	mu    sync.Mutex
	pools []Pool
	stop  chan struct{}
}

// NewMonitor creates a pool monitor with the given configuration.
func NewMonitor(config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultMonitorInterval
	}
	if config.WarningRatio <= 0 {
		config.WarningRatio = DefaultWarningRatio
	}
	if config.CriticalRatio <= 0 {
		config.CriticalRatio = DefaultCriticalRatio
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Monitor{
		interval:      config.Interval,
		warningRatio:  config.WarningRatio,
		criticalRatio: config.CriticalRatio,
		logger:        logger.WithComponent("health"),
		metrics:       config.Metrics,
	}
}

// Register adds a pool to the sample set.
func (m *Monitor) Register(pool Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools = append(m.pools, pool)
}

// Start launches the sampling loop. Starting an already-running monitor
// stops the previous loop first, so exactly one loop runs at a time.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop != nil {
		close(m.stop)
	}
	m.stop = make(chan struct{})

	go m.loop(m.stop)
}

// Stop halts the sampling loop. Safe to call multiple times.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stop == nil {
		return
	}
	close(m.stop)
	m.stop = nil
}

func (m *Monitor) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample(context.Background())
		case <-stop:
			return
		}
	}
}

// sample takes one snapshot of every pool, logging and recording it.
func (m *Monitor) sample(ctx context.Context) map[string]PoolSnapshot {
	m.mu.Lock()
	pools := make([]Pool, len(m.pools))
	copy(pools, m.pools)
	m.mu.Unlock()

	snapshots := make(map[string]PoolSnapshot, len(pools))
	for _, pool := range pools {
		snap := pool.Snapshot()
		snapshots[pool.Name()] = snap
		m.observe(ctx, pool.Name(), snap)
	}
	return snapshots
}

func (m *Monitor) observe(ctx context.Context, name string, snap PoolSnapshot) {
	fields := []observe.Field{
		{Key: "pool", Value: name},
		{Key: "open", Value: snap.Open},
		{Key: "in_use", Value: snap.InUse},
		{Key: "waiting", Value: snap.Waiting},
		{Key: "usage_ratio", Value: snap.UsageRatio},
	}

	switch {
	case snap.UsageRatio >= m.criticalRatio:
		m.logger.Error(ctx, "connection pool critically saturated", fields...)
	case snap.UsageRatio >= m.warningRatio:
		m.logger.Warn(ctx, "connection pool usage high", fields...)
	}

	// Waiting callers mean the pool is effectively saturated even when the
	// usage ratio looks fine.
	if snap.Waiting > 0 && snap.UsageRatio < m.criticalRatio {
		m.logger.Warn(ctx, "callers waiting for pool connections", fields...)
	}

	if m.metrics != nil {
		m.metrics.RecordPool(ctx, name, snap.Open, snap.Idle, snap.InUse, snap.Waiting, snap.UsageRatio)
	}
}

// Name implements Checker.
func (m *Monitor) Name() string { return "pools" }

// Check implements Checker: any pool at the critical ratio is unhealthy,
// any pool at the warning ratio or with waiting callers is degraded.
func (m *Monitor) Check(ctx context.Context) Result {
	snapshots := m.sample(ctx)

	details := make(map[string]any, len(snapshots))
	status := StatusHealthy
	var worst string

	for name, snap := range snapshots {
		details[name] = map[string]any{
			"open":        snap.Open,
			"idle":        snap.Idle,
			"in_use":      snap.InUse,
			"waiting":     snap.Waiting,
			"max":         snap.Max,
			"usage_ratio": snap.UsageRatio,
		}

		switch {
		case snap.UsageRatio >= m.criticalRatio:
			status = StatusUnhealthy
			worst = name
		case snap.UsageRatio >= m.warningRatio || snap.Waiting > 0:
			if status < StatusDegraded {
				status = StatusDegraded
				worst = name
			}
		}
	}

	switch status {
	case StatusUnhealthy:
		return Unhealthy(fmt.Sprintf("pool %q critically saturated", worst), nil).WithDetails(details)
	case StatusDegraded:
		return Degraded(fmt.Sprintf("pool %q under pressure", worst)).WithDetails(details)
	default:
		return Healthy("all pools within limits").WithDetails(details)
	}
}

var (
	_ Pool    = (*DBPool)(nil)
	_ Pool    = (*RedisPool)(nil)
	_ Checker = (*Monitor)(nil)
)
