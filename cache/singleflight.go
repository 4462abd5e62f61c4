package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/penpalhq/keel/observe"
)

// SingleFlightConfig configures the stampede-protected cache.
type SingleFlightConfig struct {
	// Logger records degraded-mode events. Default: no-op.
	Logger observe.Logger

	// Metrics records hit/miss/shared/fail-open outcomes.
	Metrics *observe.Metrics
}

// SingleFlight wraps a Store so that concurrent misses for the same key
// share one upstream fetch. For any key there is at most one fetch in
// flight; every concurrent caller observes the same resolved value or the
// same error, and the in-flight registration never survives its fetch.
//
// If the store itself is unavailable the cache fails open: the fetch runs
// directly with no caching and no stampede protection, which is the
// accepted trade-off while the backend is down.
type SingleFlight struct {
	store   Store
	group   singleflight.Group
	logger  observe.Logger
	metrics *observe.Metrics
}

// NewSingleFlight wraps the given store.
func NewSingleFlight(store Store, config SingleFlightConfig) (*SingleFlight, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	logger := config.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &SingleFlight{
		store:   store,
		logger:  logger.WithComponent("cache"),
		metrics: config.Metrics,
	}, nil
}

// Get retrieves a cached value from the underlying store.
func (c *SingleFlight) Get(ctx context.Context, key string) ([]byte, error) {
	return c.store.Get(ctx, key)
}

// Set stores a value in the underlying store.
func (c *SingleFlight) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.store.Set(ctx, key, value, ttl)
}

// Delete removes a value from the underlying store.
func (c *SingleFlight) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// GetOrSet returns the cached value for key, or fetches it exactly once on
// a miss. Concurrent callers for the same missing key share the single
// fetch. A successful fetch is cached best-effort: a failed Set is logged
// and the value still returned.
func (c *SingleFlight) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	value, err := c.store.Get(ctx, key)
	if err == nil {
		if c.metrics != nil {
			c.metrics.RecordCacheHit(ctx)
		}
		return value, nil
	}
	if !errors.Is(err, ErrMiss) {
		// Backend outage: fail open with a direct fetch.
		c.logger.Warn(ctx, "cache unavailable, fetching directly",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err.Error()})
		if c.metrics != nil {
			c.metrics.RecordCacheFailOpen(ctx)
		}
		return fetch(ctx)
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss(ctx)
	}

	// Group.Do registers the in-flight call before fetch runs and removes
	// it when the call settles, success or failure, so a later miss always
	// triggers a fresh fetch.
	result, err, shared := c.group.Do(key, func() (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if setErr := c.store.Set(ctx, key, value, ttl); setErr != nil {
			c.logger.Warn(ctx, "failed to populate cache after fetch",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "error", Value: setErr.Error()})
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	if shared && c.metrics != nil {
		c.metrics.RecordCacheShared(ctx)
	}

	return result.([]byte), nil
}

// Ensure SingleFlight implements Store
var _ Store = (*SingleFlight)(nil)
