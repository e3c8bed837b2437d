package lockout

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Store holds one account key's failure state. RecordFailure applies the
// count-and-maybe-lock step atomically; Read reports state without mutating.
// RedisStore is the production implementation; MemoryStore mirrors the same
// semantics for tests and single-process runs.
type Store interface {
	RecordFailure(ctx context.Context, key string, nowMs int64, threshold int, lockMs, ttlMs int64) (locked bool, lockedUntilMs, fails int64, err error)
	Read(ctx context.Context, key string) (lockedUntilMs, fails int64, err error)
	Clear(ctx context.Context, key string) error
}

var errBadReply = errors.New("unexpected store reply")

var recordFailureScript = redis.NewScript(`
-- KEYS[1] = lockout key
-- ARGV[1] = now (unix ms)
-- ARGV[2] = threshold
-- ARGV[3] = lock duration (ms)
-- ARGV[4] = failure streak ttl (ms)
--
-- Returns {locked(0/1), locked_until_ms, fails}
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local lock_ms = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

local locked_until = tonumber(redis.call('HGET', KEYS[1], 'locked_until'))
if locked_until and locked_until > now then
  return {1, locked_until, threshold}
end

local fails = redis.call('HINCRBY', KEYS[1], 'fails', 1)
if fails >= threshold then
  locked_until = now + lock_ms
  redis.call('HSET', KEYS[1], 'locked_until', locked_until)
  redis.call('PEXPIRE', KEYS[1], lock_ms)
  return {1, locked_until, fails}
end

redis.call('PEXPIRE', KEYS[1], ttl_ms)
return {0, 0, fails}
`)

// RedisStore runs the failure step as a Lua script, so overlapping failures
// from distributed callers never under-count.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) RecordFailure(ctx context.Context, key string, nowMs int64, threshold int, lockMs, ttlMs int64) (bool, int64, int64, error) {
	reply, err := recordFailureScript.Run(ctx, s.rdb, []string{lockKey(key)},
		nowMs, threshold, lockMs, ttlMs).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(reply) != 3 {
		return false, 0, 0, errBadReply
	}
	return reply[0] == 1, reply[1], reply[2], nil
}

func (s *RedisStore) Read(ctx context.Context, key string) (int64, int64, error) {
	vals, err := s.rdb.HMGet(ctx, lockKey(key), "locked_until", "fails").Result()
	if err != nil {
		return 0, 0, err
	}
	lockedUntil, _ := parseInt64(vals[0])
	fails, _ := parseInt64(vals[1])
	return lockedUntil, fails, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, lockKey(key)).Err()
}

func lockKey(accountKey string) string { return "lockout:" + accountKey }
