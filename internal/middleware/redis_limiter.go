package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript checks every window before recording the request, so
// rejected requests do not count. KEYS holds one sorted set per window; ARGV is
// now_ms, member, then period_ms and limit for each window in KEYS order.
// It returns {allowed, window index, remaining, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local member = ARGV[2]
local best_idx, best_remaining, best_reset = 0, -1, 0

for i, key in ipairs(KEYS) do
  local period = tonumber(ARGV[1 + i * 2])
  local limit = tonumber(ARGV[2 + i * 2])
  redis.call('ZREMRANGEBYSCORE', key, '-inf', now - period)
  local count = redis.call('ZCARD', key)
  local reset = now + period
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  if oldest[2] then
    reset = tonumber(oldest[2]) + period
  end
  if count >= limit then
    return {0, i, 0, reset}
  end
  local remaining = limit - count - 1
  if best_remaining < 0 or remaining < best_remaining then
    best_idx, best_remaining, best_reset = i, remaining, reset
  end
end

for i, key in ipairs(KEYS) do
  local period = tonumber(ARGV[1 + i * 2])
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, period)
end

return {1, best_idx, best_remaining, best_reset}
`)

// RedisLimiter is a sliding window limiter shared by every instance that
// points at the same Redis.
type RedisLimiter struct {
	redis     redis.Scripter
	windows   []Window
	keyPrefix string
	now       func() time.Time
}

// NewRedisLimiter creates a limiter storing its windows under keyPrefix.
func NewRedisLimiter(client redis.Scripter, keyPrefix string, windows []Window) *RedisLimiter {
	return &RedisLimiter{
		redis:     client,
		windows:   windows,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Allow records a request for key if every window has room.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	if len(rl.windows) == 0 {
		return Decision{Allowed: true}, nil
	}

	keys := make([]string, len(rl.windows))
	args := make([]interface{}, 0, 2+2*len(rl.windows))
	now := rl.now()
	args = append(args, now.UnixMilli(), uuid.New().String())
	for i, w := range rl.windows {
		keys[i] = fmt.Sprintf("%s:%s:%d", rl.keyPrefix, key, int64(w.Period/time.Second))
		args = append(args, w.Period.Milliseconds(), w.Limit)
	}

	res, err := slidingWindowScript.Run(ctx, rl.redis, keys, args...).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(res) != 4 || res[1] < 1 || int(res[1]) > len(rl.windows) {
		return Decision{}, errors.New("rate limit script returned an unexpected result")
	}

	w := rl.windows[res[1]-1]
	return Decision{
		Allowed:   res[0] == 1,
		Limit:     w.Limit,
		Remaining: int(res[2]),
		Reset:     time.UnixMilli(res[3]),
		Period:    w.Period,
	}, nil
}
