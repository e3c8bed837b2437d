package lockout

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRecordFailureScriptCompiles(t *testing.T) {
	if recordFailureScript == nil {
		t.Fatalf("expected script to be initialized")
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"User@Example.com", "user@example.com"},
		{"  doc@clinic.org  ", "doc@clinic.org"},
		{"plain", "plain"},
	}
	for _, c := range cases {
		if got := NormalizeKey(c.in); got != c.want {
			t.Fatalf("NormalizeKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRemainingUntil(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if d := remainingUntil(now.Add(90*time.Second).UnixMilli(), now); d != 90*time.Second {
		t.Fatalf("expected 90s, got %v", d)
	}
	if d := remainingUntil(now.Add(-time.Second).UnixMilli(), now); d != 0 {
		t.Fatalf("past deadline should clamp to 0, got %v", d)
	}
}

func memGuard(now *time.Time) *Guard {
	g := NewGuardWithStore(NewMemoryStore())
	g.clock = func() time.Time { return *now }
	return g
}

func TestRecordFailure_LocksOnFifthAndClearResets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := memGuard(&now)
	const key = "user@example.com"

	for i := 1; i < DefaultThreshold; i++ {
		st := g.RecordFailure(context.Background(), key)
		if st.Locked {
			t.Fatalf("failure %d must not lock yet: %+v", i, st)
		}
		if st.AttemptsRemaining != DefaultThreshold-i {
			t.Fatalf("failure %d: attempts remaining = %d, want %d", i, st.AttemptsRemaining, DefaultThreshold-i)
		}
	}

	st := g.RecordFailure(context.Background(), key)
	if !st.Locked {
		t.Fatalf("failure %d must trip the lock: %+v", DefaultThreshold, st)
	}
	if st.Remaining != DefaultLockDuration {
		t.Fatalf("lock duration = %v, want %v", st.Remaining, DefaultLockDuration)
	}

	if st := g.CheckLockout(context.Background(), key); !st.Locked {
		t.Fatalf("check must report the lock: %+v", st)
	}

	g.Clear(context.Background(), key)
	st = g.CheckLockout(context.Background(), key)
	if st.Locked {
		t.Fatalf("clear must unlock: %+v", st)
	}
	if st.AttemptsRemaining != DefaultThreshold {
		t.Fatalf("clear must reset the attempt budget, got %+v", st)
	}
}

func TestRecordFailure_WhileLockedDoesNotExtendLock(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := memGuard(&now)
	const key = "user@example.com"

	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure(context.Background(), key)
	}

	now = now.Add(5 * time.Minute)
	st := g.RecordFailure(context.Background(), key)
	if !st.Locked {
		t.Fatalf("attempt during lock must stay locked: %+v", st)
	}
	if st.Remaining != DefaultLockDuration-5*time.Minute {
		t.Fatalf("lock deadline moved: remaining %v, want %v", st.Remaining, DefaultLockDuration-5*time.Minute)
	}
}

func TestCheckLockout_ExpiredLockReadsClean(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := memGuard(&now)
	const key = "user@example.com"

	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure(context.Background(), key)
	}

	now = now.Add(DefaultLockDuration + time.Second)
	st := g.CheckLockout(context.Background(), key)
	if st.Locked {
		t.Fatalf("expired lock must read clean: %+v", st)
	}
	if st.AttemptsRemaining != DefaultThreshold {
		t.Fatalf("expired lock must reset the attempt budget, got %+v", st)
	}
}

func TestAccountKeysAreIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := memGuard(&now)

	for i := 0; i < DefaultThreshold; i++ {
		g.RecordFailure(context.Background(), "locked@example.com")
	}

	st := g.RecordFailure(context.Background(), "other@example.com")
	if st.Locked || st.AttemptsRemaining != DefaultThreshold-1 {
		t.Fatalf("one account's lock leaked into another: %+v", st)
	}
}

func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestRecordFailure_FailsOpenOnStorageError(t *testing.T) {
	g := NewGuard(unreachableRedis())

	st := g.RecordFailure(context.Background(), "acct@example.com")
	if st.Locked {
		t.Fatalf("storage failure must fail open, got %+v", st)
	}
	if st.AttemptsRemaining != DefaultThreshold {
		t.Fatalf("fail-open should report full attempt budget, got %+v", st)
	}
}

func TestCheckLockout_FailsOpenOnStorageError(t *testing.T) {
	g := NewGuard(unreachableRedis())

	st := g.CheckLockout(context.Background(), "acct@example.com")
	if st.Locked {
		t.Fatalf("storage failure must fail open, got %+v", st)
	}
}

func TestClear_ToleratesStorageError(t *testing.T) {
	g := NewGuard(unreachableRedis())
	// Must not panic; clear is best-effort.
	g.Clear(context.Background(), "acct@example.com")
}
