package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Store holds one address's window state. Consume applies the
// reset-or-increment step atomically; Read reports state without mutating.
// RedisStore is the production implementation; MemoryStore mirrors the same
// semantics for tests and single-process runs.
type Store interface {
	Consume(ctx context.Context, addr string, nowMs, windowMs, amount int64) (startMs, used int64, err error)
	Read(ctx context.Context, addr string) (startMs, used int64, found bool, err error)
}

var consumeScript = redis.NewScript(`
-- KEYS[1] = usage window key
-- ARGV[1] = now (unix ms)
-- ARGV[2] = window length (ms)
-- ARGV[3] = seconds to add
--
-- Returns {window_start_ms, used_seconds}
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local amount = tonumber(ARGV[3])

local start = tonumber(redis.call('HGET', KEYS[1], 'start'))
local used = tonumber(redis.call('HGET', KEYS[1], 'used'))

if (not start) or (now - start >= window_ms) then
  start = now
  used = amount
else
  used = used + amount
end

redis.call('HSET', KEYS[1], 'start', start, 'used', used)
redis.call('PEXPIRE', KEYS[1], window_ms * 2)
return {start, used}
`)

// RedisStore runs the window step as a Lua script, so concurrent reports from
// multiple process instances cannot race a read-check-then-write cycle.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Consume(ctx context.Context, addr string, nowMs, windowMs, amount int64) (int64, int64, error) {
	reply, err := consumeScript.Run(ctx, s.rdb, []string{usageKey(addr)}, nowMs, windowMs, amount).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(reply) != 2 {
		return 0, 0, errBadReply
	}
	return reply[0], reply[1], nil
}

func (s *RedisStore) Read(ctx context.Context, addr string) (int64, int64, bool, error) {
	vals, err := s.rdb.HMGet(ctx, usageKey(addr), "start", "used").Result()
	if err != nil {
		return 0, 0, false, err
	}
	startMs, ok1 := toInt64(vals[0])
	used, ok2 := toInt64(vals[1])
	if !ok1 || !ok2 {
		return 0, 0, false, nil
	}
	return startMs, used, true, nil
}

func usageKey(addr string) string { return "usage:" + addr }
