package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// RateDecision is the outcome of one fixed-window hit.
type RateDecision struct {
	Key       string
	Allowed   bool
	Count     int64
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// RateLimiter counts hits per key in fixed windows shared by every process
// talking to the same Redis.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateDecision, error)
	// AllowAll counts one hit on every key only if each of them still has
	// room, so a rejection consumes nothing. The decision describes the
	// first key that refused, or the busiest key when all were counted.
	// On a cluster the keys must hash to one slot.
	AllowAll(ctx context.Context, keys []string, limit int, window time.Duration) (*RateDecision, error)
}

// The first hit of a window starts its expiry, so the window is fixed from
// that moment rather than sliding.
var fixedWindowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Returns {allowed, index, count, pttl}; index is 1-based into KEYS.
var multiWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[2])
for i, k in ipairs(KEYS) do
	local n = tonumber(redis.call("GET", k) or "0")
	if n >= limit then
		return {0, i, n, redis.call("PTTL", k)}
	end
end
local top, topN, topTTL = 1, 0, 0
for i, k in ipairs(KEYS) do
	local n = redis.call("INCR", k)
	if n == 1 then
		redis.call("PEXPIRE", k, ARGV[1])
	end
	if n > topN then
		top, topN, topTTL = i, n, redis.call("PTTL", k)
	end
end
return {1, top, topN, topTTL}
`)

type redisRateLimiter struct {
	client *Client
}

func NewRateLimiter(client *Client) RateLimiter {
	return &redisRateLimiter{client: client}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*RateDecision, error) {
	if r.client.isClosed() {
		return nil, ErrClientClosed
	}
	res, err := fixedWindowScript.Run(ctx, r.client.rdb, []string{r.client.Key("rl:" + key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "rate limiter unavailable")
	}
	count, ttl := res[0], res[1]
	if ttl < 0 {
		ttl = window.Milliseconds()
	}
	d := &RateDecision{
		Key:     key,
		Allowed: count <= int64(limit),
		Count:   count,
		Limit:   limit,
		ResetIn: time.Duration(ttl) * time.Millisecond,
	}
	if d.Allowed {
		d.Remaining = limit - int(count)
	}
	return d, nil
}

func (r *redisRateLimiter) AllowAll(ctx context.Context, keys []string, limit int, window time.Duration) (*RateDecision, error) {
	if len(keys) == 0 {
		return nil, errors.InvalidParam("at least one rate limit key is required")
	}
	if r.client.isClosed() {
		return nil, ErrClientClosed
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.client.Key("rl:" + k)
	}
	res, err := multiWindowScript.Run(ctx, r.client.rdb, full, window.Milliseconds(), limit).Int64Slice()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheError, "rate limiter unavailable")
	}
	allowed, idx, count, ttl := res[0] == 1, int(res[1])-1, res[2], res[3]
	if idx < 0 || idx >= len(keys) {
		return nil, errors.Newf(errors.CodeCacheError, "rate limiter returned key index %d", idx+1)
	}
	if ttl < 0 {
		ttl = window.Milliseconds()
	}
	d := &RateDecision{
		Key:     keys[idx],
		Allowed: allowed,
		Count:   count,
		Limit:   limit,
		ResetIn: time.Duration(ttl) * time.Millisecond,
	}
	if allowed {
		d.Remaining = limit - int(count)
	}
	return d, nil
}
