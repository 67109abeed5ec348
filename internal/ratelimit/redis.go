package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisWindowTTLSeconds keeps a window key alive slightly past its second.
const redisWindowTTLSeconds = 2

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements the one-second window limiter on a shared Redis.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix)}
}

// Allow counts one request for key in the second containing now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	count, errEval := redisIncrScript.Run(ctx, l.client, []string{l.windowKey(key, sec)}, redisWindowTTLSeconds).Int64()
	if errEval != nil {
		return Result{}, fmt.Errorf("rate limit redis: eval: %w", errEval)
	}
	if count > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: max(limit-int(count), 0), Reset: reset}, nil
}

func (l *RedisLimiter) windowKey(key string, sec int64) string {
	window := strconv.FormatInt(sec, 10)
	if l.prefix == "" {
		return key + ":" + window
	}
	return l.prefix + ":" + key + ":" + window
}
