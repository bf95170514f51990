package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "tradeguard:rl:"

// INCR и PEXPIRE в одном скрипте: окно открывает первый запрос
var incrScript = redis.NewScript(`
local key = KEYS[1]
local window_ms = tonumber(ARGV[1])

local current = redis.call("INCR", key)
if current == 1 then
  redis.call("PEXPIRE", key, window_ms)
end

local ttl = redis.call("PTTL", key)
if ttl < 0 then
  redis.call("PEXPIRE", key, window_ms)
  ttl = window_ms
end

return {current, ttl}
`)

// RedisStore shares counters between processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a redis-backed store; empty prefix means the default.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	windowMS := window.Milliseconds()
	if windowMS <= 0 {
		return 0, 0, fmt.Errorf("invalid rate limit window")
	}

	res, err := incrScript.Run(ctx, s.client, []string{s.prefix + key}, windowMS).Result()
	if err != nil {
		return 0, 0, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis response")
	}

	count, ok := vals[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis response")
	}

	ttlMS, ok := vals[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis response")
	}

	return int(count), time.Duration(ttlMS) * time.Millisecond, nil
}
