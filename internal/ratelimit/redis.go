package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// admitScript trims, counts, and conditionally records in one atomic
// evaluation, so two concurrent requests can never both observe the
// last free slot. Scores are unix milliseconds: sorted-set scores are
// float64, which cannot represent nanosecond timestamps exactly.
//
// KEYS[1] = the client's window set.
// ARGV = window start (ms), now (ms), max requests, key TTL (s), member.
// Reply: {allowed 0/1, count after the call, oldest score or 0}.
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	return {0, count, tonumber(oldest[2]) or 0}
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[5])
redis.call('EXPIRE', KEYS[1], ARGV[4])
return {1, count + 1, 0}
`)

// RedisStore keeps each client's window in a Redis sorted set scored by
// request time, so multiple instances share one admission budget.
type RedisStore struct {
	client      *redis.Client
	scripts     redis.Scripter
	window      time.Duration
	maxRequests int
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis at redisURL and verifies the connection.
func NewRedisStore(redisURL string, window time.Duration, maxRequests int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{
		client:      client,
		scripts:     client,
		window:      window,
		maxRequests: maxRequests,
	}, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Admit evaluates the window script against the client's set. The trim,
// count, and record happen inside one script call, which Redis runs
// atomically; that is the cross-instance equivalent of the memory
// store's mutex.
func (s *RedisStore) Admit(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	windowStart := now.Add(-s.window)

	vals, err := admitScript.Run(ctx, s.scripts,
		[]string{"ratelimit:" + key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		s.maxRequests,
		int64(2*s.window/time.Second),
		uuid.NewString(),
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate window: %w", err)
	}
	if len(vals) != 3 {
		return Decision{}, fmt.Errorf("evaluate window: unexpected reply %v", vals)
	}

	allowed, ok1 := vals[0].(int64)
	count, ok2 := vals[1].(int64)
	oldestMS, ok3 := vals[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return Decision{}, fmt.Errorf("evaluate window: unexpected reply %v", vals)
	}

	if allowed == 0 {
		retry := s.window
		if oldestMS > 0 {
			retry = s.window - now.Sub(time.UnixMilli(oldestMS))
			if retry < 0 {
				retry = 0
			}
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retry}, nil
	}

	return Decision{Allowed: true, Remaining: s.maxRequests - int(count)}, nil
}
