package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"cv-ranker/internal/shared/telemetry"
)

const redisTokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
  ts = now
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens)}
`

// RedisRateLimiter shares token buckets across API replicas through Redis.
// Redis errors fail open so an unavailable cache never blocks ranking.
type RedisRateLimiter struct {
	client  redis.UniversalClient
	script  *redis.Script
	prefix  string
	timeout time.Duration
}

// NewRedisRateLimiter parses a redis:// URL and returns a limiter.
func NewRedisRateLimiter(redisURL string) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisRateLimiterWithClient(redis.NewClient(opts)), nil
}

// NewRedisRateLimiterWithClient wraps an existing client.
func NewRedisRateLimiterWithClient(client redis.UniversalClient) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:  client,
		script:  redis.NewScript(redisTokenBucketScript),
		prefix:  "cvranker:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

// Allow consumes one token for key if available.
func (l *RedisRateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || l.client == nil {
		return true, 0
	}
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	ttl := bucketTTL(rule)
	res, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, rule.Rate, rule.Burst, ttl.Milliseconds()).Slice()
	if err != nil || len(res) < 2 {
		telemetry.Warn("ratelimit.redis_unavailable", map[string]any{
			"key":   key,
			"error": err,
		})
		return true, 0
	}

	allowed, _ := res[0].(int64)
	if allowed == 1 {
		return true, 0
	}
	tokens := 0.0
	if raw, ok := res[1].(string); ok {
		tokens, _ = strconv.ParseFloat(raw, 64)
	}
	needed := 1 - tokens
	if needed < 0 {
		needed = 0
	}
	return false, time.Duration(math.Ceil(needed/rule.Rate*1000.0)) * time.Millisecond
}

// Close releases the underlying client.
func (l *RedisRateLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

func bucketTTL(rule RateLimitRule) time.Duration {
	seconds := math.Ceil(float64(rule.Burst) / rule.Rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
