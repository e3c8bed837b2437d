package storage

import (
	"testing"
	"time"
)

func TestPostgresPoolDefaults(t *testing.T) {
	got := PostgresPoolConfig{}.withDefaults()
	if got.MaxOpenConns != 25 || got.MaxIdleConns != 25 {
		t.Fatalf("unexpected pool sizing: %+v", got)
	}
	if got.PingTimeout != 5*time.Second {
		t.Fatalf("PingTimeout = %v, want 5s", got.PingTimeout)
	}

	// Explicit values survive.
	got = PostgresPoolConfig{MaxOpenConns: 3, PingTimeout: time.Second}.withDefaults()
	if got.MaxOpenConns != 3 || got.PingTimeout != time.Second {
		t.Fatalf("explicit values overridden: %+v", got)
	}
}

func TestRedisDefaults(t *testing.T) {
	got := RedisConfig{Addr: "localhost:6379"}.withDefaults()
	if got.DialTimeout != 3*time.Second || got.PoolSize != 20 {
		t.Fatalf("unexpected defaults: %+v", got)
	}

	got = RedisConfig{Addr: "localhost:6379", PoolSize: 5}.withDefaults()
	if got.PoolSize != 5 {
		t.Fatalf("explicit pool size overridden: %+v", got)
	}
}
