// Package redis holds the shared Redis connection and the small set of
// primitives built on it: cache values, idempotency records, org rate limits
// and cron leases.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliria/erp-backend/pkg/config"
	"github.com/iliria/erp-backend/pkg/logger"
)

const namespace = "il"

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("redis: key not found")

var errNotConnected = errors.New("redis client not initialized")

// backend is the subset of *redis.Client the package drives.
type backend interface {
	redis.Scripter
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

type Client struct {
	rdb backend
}

// Consumer-side views of Client.
type (
	IdempotencyStore interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key string, value any, ttl time.Duration) error
		SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
		Del(ctx context.Context, keys ...string) error
		IdempotencyKey(scope, id string) string
	}

	RateLimiter interface {
		Allow(ctx context.Context, scope string, limit int64, window time.Duration) (Quota, error)
	}

	Cache interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key string, value any, ttl time.Duration) error
		Del(ctx context.Context, keys ...string) error
		CacheKey(parts ...string) string
	}
)

// New dials Redis and fails unless PING succeeds.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis connection established")
	}
	return &Client{rdb: rdb}, nil
}

// options prefers the URL and lets explicit config fill whatever the URL
// leaves unset.
func options(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	if u := strings.TrimSpace(cfg.URL); u != "" {
		parsed, err := redis.ParseURL(u)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if parsed.DB == 0 {
			parsed.DB = cfg.DB
		}
		opts = parsed
	}
	if opts.Addr == "" {
		return nil, errors.New("redis url or address is required")
	}
	fill := func(dst *time.Duration, v time.Duration) {
		if *dst == 0 {
			*dst = v
		}
	}
	fill(&opts.DialTimeout, cfg.DialTimeout)
	fill(&opts.ReadTimeout, cfg.ReadTimeout)
	fill(&opts.WriteTimeout, cfg.WriteTimeout)
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	return opts, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return errNotConnected
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *Client) IdempotencyKey(scope, id string) string { return key("idempotency", scope, id) }

func (c *Client) CacheKey(parts ...string) string { return key(append([]string{"cache"}, parts...)...) }

func rateLimitKey(scope string) string { return key("rate_limit", scope) }

// key joins non-empty parts under the service namespace.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}
