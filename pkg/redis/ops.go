package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// windowScript counts a hit in a fixed window and reports the remaining
// window length, arming the expiry on the first hit only.
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {n, ttl}
`)

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Quota is the outcome of one rate limited call.
type Quota struct {
	Allowed bool
	Count   int64
	ResetIn time.Duration
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c == nil || c.rdb == nil {
		return "", errNotConnected
	}
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return errNotConnected
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX reports whether the value was written.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errNotConnected
	}
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.rdb == nil {
		return errNotConnected
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// CompareAndDelete removes key when its value equals token.
func (c *Client) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	if c == nil || c.rdb == nil {
		return false, errNotConnected
	}
	n, err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", key, err)
	}
	return n == 1, nil
}

// Allow counts one call against scope's fixed window of the given length.
func (c *Client) Allow(ctx context.Context, scope string, limit int64, window time.Duration) (Quota, error) {
	if c == nil || c.rdb == nil {
		return Quota{}, errNotConnected
	}
	if window <= 0 {
		return Quota{}, errors.New("rate limit window must be positive")
	}
	res, err := windowScript.Run(ctx, c.rdb, []string{rateLimitKey(scope)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Quota{}, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	if len(res) != 2 {
		return Quota{}, fmt.Errorf("rate limit %s: unexpected reply %v", scope, res)
	}
	q := Quota{Count: res[0], Allowed: res[0] <= limit}
	if res[1] > 0 {
		q.ResetIn = time.Duration(res[1]) * time.Millisecond
	}
	return q, nil
}
