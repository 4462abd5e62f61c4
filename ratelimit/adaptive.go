package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/penpalhq/keel/observe"
)

// EventKind classifies a response outcome for quota accounting.
type EventKind string

// Event kinds recorded against a client's rolling window.
const (
	Event4xx       EventKind = "4xx"
	Event5xx       EventKind = "5xx"
	EventRateLimit EventKind = "rate_limit"
)

const (
	// DefaultWindow is the rolling window over which client events count.
	DefaultWindow = 5 * time.Minute

	// DefaultSweepInterval is how often expired records are removed.
	DefaultSweepInterval = time.Minute

	// minSweepInterval is the floor for the background sweep. Sweeping is
	// purely a memory bound, not a correctness mechanism, so it never needs
	// to run more often than this.
	minSweepInterval = time.Minute
)

// AdaptiveConfig configures an AdaptiveLimiter.
type AdaptiveConfig struct {
	// Window is the rolling window for client event counts. Default: 5m.
	Window time.Duration

	// SweepInterval is how often expired records are pruned. Values below
	// one minute are clamped up. Default: 1m.
	SweepInterval time.Duration

	// Logger records sweep activity. Default: no-op.
	Logger observe.Logger
}

// quotaRecord tracks one client's error events within the current window.
type quotaRecord struct {
	errors4xx     int
	errors5xx     int
	rateLimitHits int
	windowStart   time.Time
}

// AdaptiveLimiter shrinks a client's admission quota based on its recent
// behavior. Every response is recorded as an event kind; the factor applied
// to the client's base quota degrades with the severity of its record and
// recovers on its own once the rolling window passes without new events.
//
// Factors are observational only: the limiter never rejects anything itself,
// it just answers "how much quota does this client deserve right now".
type AdaptiveLimiter struct {
	window        time.Duration
	sweepInterval time.Duration
	logger        observe.Logger

	mu      sync.Mutex
	records map[string]*quotaRecord
	hooks   []func()
	stop    chan struct{}
}

// NewAdaptiveLimiter creates an AdaptiveLimiter with the given configuration.
func NewAdaptiveLimiter(config AdaptiveConfig) *AdaptiveLimiter {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.SweepInterval < minSweepInterval {
		config.SweepInterval = minSweepInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &AdaptiveLimiter{
		window:        config.Window,
		sweepInterval: config.SweepInterval,
		logger:        logger.WithComponent("ratelimit"),
		records:       make(map[string]*quotaRecord),
	}
}

// Record counts one event of the given kind against clientKey. A record
// older than the window is reset before counting, so stale history never
// carries over.
func (l *AdaptiveLimiter) Record(clientKey string, kind EventKind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	rec, ok := l.records[clientKey]
	if !ok || now.Sub(rec.windowStart) > l.window {
		rec = &quotaRecord{windowStart: now}
		l.records[clientKey] = rec
	}

	switch kind {
	case Event4xx:
		rec.errors4xx++
	case Event5xx:
		rec.errors5xx++
	case EventRateLimit:
		rec.rateLimitHits++
	}
}

// Factor returns the quota multiplier for clientKey: 1.0 for a clean or
// expired record, 0.5 for moderate abuse, 0.25 for heavy abuse.
func (l *AdaptiveLimiter) Factor(clientKey string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[clientKey]
	if !ok || time.Since(rec.windowStart) > l.window {
		return 1.0
	}

	switch {
	case rec.errors5xx >= 5 || rec.rateLimitHits >= 10 || rec.errors4xx >= 30:
		return 0.25
	case rec.errors5xx >= 2 || rec.rateLimitHits >= 4 || rec.errors4xx >= 15:
		return 0.5
	default:
		return 1.0
	}
}

// AdaptiveMax scales baseMax by the client's current factor. The result is
// floored but never drops below 1, so a misbehaving client is throttled,
// not locked out.
func (l *AdaptiveLimiter) AdaptiveMax(clientKey string, baseMax int) int {
	scaled := int(float64(baseMax) * l.Factor(clientKey))
	if scaled < 1 {
		return 1
	}
	return scaled
}

// OnSweep registers fn to run after each sweep. The middleware uses this to
// prune its idle per-client limiters on the same cadence.
func (l *AdaptiveLimiter) OnSweep(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, fn)
}

// Start launches the background sweep loop. Calling Start on a running
// limiter is a no-op.
func (l *AdaptiveLimiter) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		return
	}
	l.stop = make(chan struct{})

	go l.sweepLoop(l.stop)
}

// Stop halts the background sweep loop. Safe to call multiple times.
func (l *AdaptiveLimiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop == nil {
		return
	}
	close(l.stop)
	l.stop = nil
}

func (l *AdaptiveLimiter) sweepLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-stop:
			return
		}
	}
}

// sweep drops records whose window has fully expired, bounding the map to
// clients active within the last window, then runs the registered hooks.
func (l *AdaptiveLimiter) sweep() {
	l.mu.Lock()
	now := time.Now()
	removed := 0
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) > l.window {
			delete(l.records, key)
			removed++
		}
	}
	hooks := make([]func(), len(l.hooks))
	copy(hooks, l.hooks)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug(context.Background(), "swept expired quota records",
			observe.Field{Key: "removed", Value: removed})
	}
	for _, fn := range hooks {
		fn()
	}
}

// Len returns the number of tracked client records.
func (l *AdaptiveLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
