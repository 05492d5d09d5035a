package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "auth-api:ratelimit:"

// fixedWindowScript increments the counter, arms the expiry on the first hit
// and returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// Redis shares one fixed window per key across every instance using the
// same server and prefix.
type Redis struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(client redis.Scripter, prefix string, limit int, win time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	limit, win = normalize(limit, win)
	return &Redis{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: win,
		now:    time.Now,
	}
}

func (r *Redis) Window() time.Duration {
	return r.window
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	res, err := fixedWindowScript.Run(ctx, r.client, []string{r.prefix + key}, r.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit: allow check failed: %w", err)
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("redis rate limit: unexpected result format")
	}

	count := int(res[0])
	ttl := time.Duration(res[1]) * time.Millisecond

	return Result{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: remaining(r.limit, count),
		ResetAt:   r.now().Add(ttl),
	}, nil
}
