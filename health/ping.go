package health

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
)

// DBChecker verifies database reachability with a ping.
type DBChecker struct {
	name string
	db   *sqlx.DB
}

// NewDBChecker creates a database reachability check.
func NewDBChecker(name string, db *sqlx.DB) *DBChecker {
	return &DBChecker{name: name, db: db}
}

func (c *DBChecker) Name() string { return c.name }

func (c *DBChecker) Check(ctx context.Context) Result {
	if err := c.db.PingContext(ctx); err != nil {
		return Unhealthy("database unreachable", err)
	}
	return Healthy("database reachable")
}

// RedisChecker verifies Redis reachability with a ping.
type RedisChecker struct {
	name   string
	client *redis.Client
}

// NewRedisChecker creates a Redis reachability check.
func NewRedisChecker(name string, client *redis.Client) *RedisChecker {
	return &RedisChecker{name: name, client: client}
}

func (c *RedisChecker) Name() string { return c.name }

func (c *RedisChecker) Check(ctx context.Context) Result {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return Unhealthy("redis unreachable", err)
	}
	return Healthy("redis reachable")
}

var (
	_ Checker = (*DBChecker)(nil)
	_ Checker = (*RedisChecker)(nil)
)
