package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scribeflow/gatekeeper/internal/domain/service"
	"github.com/scribeflow/gatekeeper/pkg/errors"
	"github.com/scribeflow/gatekeeper/pkg/logger"
)

// Lua script for atomic increment-with-expiry. The first increment of a key
// starts its window; PTTL drives the reported reset time. Running both calls
// in one script keeps two instances behind a load balancer from ever
// under-counting a shared key.
const incrementLuaScript = `
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
`

// RedisCounterStore implements the counter store on Redis so fixed-window
// counts are shared across process instances.
type RedisCounterStore struct {
	client redis.UniversalClient
	script *redis.Script
	logger logger.Logger
}

var _ service.CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore creates a Redis-backed counter store.
func NewRedisCounterStore(client redis.UniversalClient, log logger.Logger) (*RedisCounterStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	return &RedisCounterStore{
		client: client,
		script: redis.NewScript(incrementLuaScript),
		logger: log.WithComponent("redis_counter_store"),
	}, nil
}

// Increment atomically increments the counter for key, starting a window of
// the given length on first increment, and returns the post-increment count
// with the window reset time.
func (s *RedisCounterStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	result, err := s.script.Run(ctx, s.client, []string{key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, errors.ErrStoreUnavailable("counter", err)
	}

	count, ttlMs, err := parseIncrementReply(result)
	if err != nil {
		return 0, time.Time{}, errors.ErrStoreUnavailable("counter", err)
	}

	return count, time.Now().Add(time.Duration(ttlMs) * time.Millisecond), nil
}

// parseIncrementReply validates the script reply shape. A proxy or a server
// in an unexpected mode can hand back something other than two integers, and
// that must surface as a store error so the limiter fails open instead of
// panicking.
func parseIncrementReply(reply interface{}) (count int64, ttlMs int64, err error) {
	values, ok := reply.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected script result: %v", reply)
	}

	count, ok = values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count in script result: %v", values[0])
	}
	ttlMs, ok = values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected ttl in script result: %v", values[1])
	}

	return count, ttlMs, nil
}

// Reset deletes the counter for key.
func (s *RedisCounterStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return errors.ErrStoreUnavailable("counter", err)
	}

	s.logger.Debug(ctx, "counter reset", logger.String("key", key))
	return nil
}
