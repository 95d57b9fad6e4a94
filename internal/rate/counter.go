package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// TTLNoExpiry is returned by RemainingTTL for a key that exists without a TTL.
	TTLNoExpiry int64 = -1
	// TTLMissing is returned by RemainingTTL for a key that does not exist.
	TTLMissing int64 = -2
)

// incrScript increments KEYS[1] and sets its expiry only when the post-increment
// value is 1. ARGV[1] is the window in whole seconds.
var incrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// Counter is the atomic counter contract consumed by the limiters.
type Counter interface {
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
	RemainingTTL(ctx context.Context, key string) (int64, error)
	SetLock(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// Options tunes a [RedisCounter].
type Options struct {
	// Namespace is prepended to every key when non-empty ("goguard" -> "goguard:rl:...").
	Namespace string
	// OpTimeout bounds each Redis round-trip when the caller context has no deadline.
	OpTimeout time.Duration
}

// RedisCounter implements [Counter] on a Redis server.
type RedisCounter struct {
	redis     redis.UniversalClient
	namespace string
	timeout   time.Duration
}

// NewRedisCounter returns a counter bound to redisClient.
func NewRedisCounter(redisClient redis.UniversalClient, opts Options) *RedisCounter {
	ns := strings.TrimSuffix(strings.TrimSpace(opts.Namespace), ":")
	if ns != "" {
		ns += ":"
	}
	return &RedisCounter{
		redis:     redisClient,
		namespace: ns,
		timeout:   opts.OpTimeout,
	}
}

// IncrementWithExpiry atomically increments key and, only when the result is 1,
// sets its expiry to window (rounded up to whole seconds, minimum one second).
// It returns the post-increment value.
func (c *RedisCounter) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	count, err := incrScript.Run(ctx, c.redis, []string{c.key(key)}, Seconds(window)).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

// RemainingTTL returns the seconds until key expires, or [TTLNoExpiry] /
// [TTLMissing].
func (c *RedisCounter) RemainingTTL(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	ttl, err := c.redis.TTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	// go-redis passes the -1/-2 replies through unscaled.
	switch ttl {
	case time.Duration(TTLNoExpiry):
		return TTLNoExpiry, nil
	case time.Duration(TTLMissing):
		return TTLMissing, nil
	}
	return int64(ttl / time.Second), nil
}

// SetLock writes a presence marker at key with the given TTL, overwriting any
// previous value and expiry.
func (c *RedisCounter) SetLock(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.redis.Set(ctx, c.key(key), "1", time.Duration(Seconds(ttl))*time.Second).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Exists reports whether key is present.
func (c *RedisCounter) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	n, err := c.redis.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Delete removes keys. Missing keys are ignored.
func (c *RedisCounter) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			return ErrInvalidKey
		}
		full = append(full, c.key(k))
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Ping checks backend reachability.
func (c *RedisCounter) Ping(ctx context.Context) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Seconds converts d to whole seconds, rounding up, with a floor of 1.
func Seconds(d time.Duration) int64 {
	s := int64((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

func (c *RedisCounter) key(k string) string {
	return c.namespace + k
}

func (c *RedisCounter) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}
