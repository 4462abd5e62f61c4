package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/penpalhq/keel/observe"
)

const (
	// DefaultBaseRate is the steady-state admission rate per client,
	// in requests per second.
	DefaultBaseRate = 10

	// DefaultBaseBurst is the burst capacity granted to a clean client.
	DefaultBaseBurst = 20
)

// MiddlewareConfig configures the admission middleware.
type MiddlewareConfig struct {
	// BaseRate is the per-client refill rate in requests per second.
	// Default: 10.
	BaseRate float64

	// BaseBurst is the per-client burst size before adaptive scaling.
	// Default: 20.
	BaseBurst int

	// Limiter supplies adaptive factors. If nil, a limiter with default
	// settings is created.
	Limiter *AdaptiveLimiter

	// KeyFunc extracts the quota key from a request. Default: ClientKey.
	KeyFunc func(*http.Request) string

	// Logger records rejected requests. Default: no-op.
	Logger observe.Logger

	// Metrics records throttle decisions and quota factors.
	Metrics *observe.Metrics
}

// clientBucket pairs a token bucket with the moment it last admitted or
// rejected a request, so idle buckets can be pruned.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Middleware applies a fixed per-client token bucket whose size and refill
// rate shrink with the client's adaptive factor. Every response is fed back
// into the AdaptiveLimiter by captured status code, closing the loop:
// clients generating errors earn smaller buckets on their next requests.
type Middleware struct {
	baseRate  float64
	baseBurst int
	adaptive  *AdaptiveLimiter
	keyFunc   func(*http.Request) string
	logger    observe.Logger
	metrics   *observe.Metrics

	mu      sync.Mutex
	buckets map[string]*clientBucket
}

// NewMiddleware creates the admission middleware.
func NewMiddleware(config MiddlewareConfig) *Middleware {
	if config.BaseRate <= 0 {
		config.BaseRate = DefaultBaseRate
	}
	if config.BaseBurst <= 0 {
		config.BaseBurst = DefaultBaseBurst
	}
	if config.Limiter == nil {
		config.Limiter = NewAdaptiveLimiter(AdaptiveConfig{Logger: config.Logger})
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ClientKey
	}
	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	m := &Middleware{
		baseRate:  config.BaseRate,
		baseBurst: config.BaseBurst,
		adaptive:  config.Limiter,
		keyFunc:   config.KeyFunc,
		logger:    logger.WithComponent("ratelimit"),
		metrics:   config.Metrics,
		buckets:   make(map[string]*clientBucket),
	}
	m.adaptive.OnSweep(m.pruneStale)

	return m
}

// Limiter returns the adaptive limiter feeding this middleware.
func (m *Middleware) Limiter() *AdaptiveLimiter {
	return m.adaptive
}

// Handler wraps next with adaptive admission control.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.keyFunc(r)
		factor := m.adaptive.Factor(key)

		if m.metrics != nil {
			m.metrics.RecordQuotaFactor(r.Context(), factor)
		}

		if !m.bucket(key, factor).Allow() {
			m.reject(w, r, key)
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.recordStatus(key, sw.status)
	})
}

// bucket returns the client's token bucket, creating it on first sight and
// retuning its rate and burst whenever the adaptive factor has moved.
func (m *Middleware) bucket(key string, factor float64) *rate.Limiter {
	burst := m.adaptive.AdaptiveMax(key, m.baseBurst)
	limit := rate.Limit(m.baseRate * factor)

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(limit, burst)}
		m.buckets[key] = b
	}
	if b.limiter.Limit() != limit {
		b.limiter.SetLimit(limit)
	}
	if b.limiter.Burst() != burst {
		b.limiter.SetBurst(burst)
	}
	b.lastSeen = time.Now()

	return b.limiter
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, key string) {
	m.adaptive.Record(key, EventRateLimit)
	if m.metrics != nil {
		m.metrics.RecordThrottled(r.Context(), r.URL.Path)
	}
	m.logger.Warn(r.Context(), "request throttled",
		observe.Field{Key: "client", Value: key},
		observe.Field{Key: "path", Value: r.URL.Path})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "rate limit exceeded",
	})
}

func (m *Middleware) recordStatus(key string, status int) {
	switch {
	case status == http.StatusTooManyRequests:
		m.adaptive.Record(key, EventRateLimit)
	case status >= 500:
		m.adaptive.Record(key, Event5xx)
	case status >= 400:
		m.adaptive.Record(key, Event4xx)
	}
}

// pruneStale drops buckets idle for longer than the adaptive window. Runs
// on the adaptive limiter's sweep cadence.
func (m *Middleware) pruneStale() {
	cutoff := time.Now().Add(-m.adaptive.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

// statusWriter captures the response status code for event recording.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}
