// Package ratelimit provides per-caller admission control for the message
// send path.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter admits or rejects one operation for key.
type Limiter interface {
	// Allow reports whether the operation is admitted and, when it is not,
	// how long until the oldest admitted entry leaves the window.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// slidingWindowScript trims the key's sorted set to the window, then admits
// only while the count is below the limit. Rejections are not recorded.
// ARGV: now ms, cutoff ms, limit, member, window ms.
// Returns {admitted, oldest score}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", key, "-inf", ARGV[2])
local count = redis.call("ZCARD", key)
if count >= limit then
  local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
  return {0, tonumber(oldest[2])}
end
redis.call("ZADD", key, ARGV[1], ARGV[4])
redis.call("PEXPIRE", key, ARGV[5])
return {1, tonumber(ARGV[1])}
`)

// SlidingWindow is a Redis-backed sliding-window limiter: at most limit
// admissions per key in any window-long interval.
type SlidingWindow struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindow creates a limiter that stores its state under prefix.
func NewSlidingWindow(client redis.Scripter, prefix string, limit int, window time.Duration) (*SlidingWindow, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter requires a redis client")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &SlidingWindow{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source; used by tests.
func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	l.now = now
	return l
}

// Allow is atomic per key: concurrent sends by the same caller cannot both
// take the last slot. Redis failures are returned as errors.
func (l *SlidingWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	nowMs := l.now().UnixMilli()
	windowMs := l.window.Milliseconds()
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	member := fmt.Sprintf("%d-%s", nowMs, uuid.NewString())

	res, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey},
		nowMs, nowMs-windowMs, l.limit, member, windowMs).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit %s: unexpected script reply %v", key, res)
	}
	if res[0] == 1 {
		return true, 0, nil
	}

	retryAfter := time.Duration(res[1]+windowMs-nowMs) * time.Millisecond
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter, nil
}
