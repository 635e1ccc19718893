package ratelimiting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1]: sorted set of admissions, scored by admission time in microseconds
// ARGV: now, window (microseconds), limit, unique member for this admission
// Returns {allowed, count, oldest}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	count = count + 1
	allowed = 1
end

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
	oldest = tonumber(first[2])
end

redis.call('PEXPIRE', key, math.ceil(window / 1000))

return {allowed, count, oldest}
`)

// RedisCounterStore shares admission logs between process instances through redis
type RedisCounterStore struct {
	client  redis.Scripter
	prefix  string
	timeout time.Duration
}

type RedisOption func(*RedisCounterStore)

func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisCounterStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

// Bound the time spent waiting for redis on each check
func WithTimeout(timeout time.Duration) RedisOption {
	return func(s *RedisCounterStore) {
		s.timeout = timeout
	}
}

func NewRedisCounterStore(client redis.Scripter, opts ...RedisOption) *RedisCounterStore {
	s := &RedisCounterStore{
		client:  client,
		prefix:  "tavolo",
		timeout: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Decision, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	member := fmt.Sprintf("%d-%s", now.UnixMicro(), uuid.NewString())

	values, err := slidingWindowScript.Run(
		ctx,
		s.client,
		[]string{s.prefix + ":" + key},
		now.UnixMicro(),
		window.Microseconds(),
		limit,
		member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to run sliding window script: %w", err)
	}
	if len(values) != 3 {
		return Decision{}, fmt.Errorf("unexpected sliding window script result: %v", values)
	}

	allowed := values[0] == 1
	remaining := 0
	if allowed {
		remaining = limit - int(values[1])
	}

	return Decision{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   time.UnixMicro(values[2]).Add(window),
	}, nil
}
