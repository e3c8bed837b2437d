package lockout

import (
	"context"
	"strconv"
	"strings"
	"time"

	"callbridge/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultThreshold failed attempts lock the account.
	DefaultThreshold = 5
	// DefaultLockDuration is how long a tripped lock holds.
	DefaultLockDuration = 15 * time.Minute
	// failureTTL is how long a partial failure streak is remembered.
	failureTTL = time.Hour
)

type Status struct {
	Locked            bool          `json:"locked"`
	Remaining         time.Duration `json:"-"`
	AttemptsRemaining int           `json:"attempts_remaining"`
}

// Guard is the per-account failed-login counter with timed lockout.
//
// State machine per key: clean -> warning (1..N-1 failures) -> locked
// (>= N failures) -> clean again once the lock expires or Clear is called.
//
// Infra failure policy: fail open, same as the rate limiter. An
// authentication path must not brick on a Redis outage.
type Guard struct {
	store Store

	threshold    int
	lockDuration time.Duration
	clock        func() time.Time
}

func NewGuard(rdb *redis.Client) *Guard {
	return NewGuardWithStore(NewRedisStore(rdb))
}

func NewGuardWithStore(store Store) *Guard {
	return &Guard{
		store:        store,
		threshold:    DefaultThreshold,
		lockDuration: DefaultLockDuration,
		clock:        time.Now,
	}
}

// RecordFailure registers one failed attempt and reports the resulting state.
func (g *Guard) RecordFailure(ctx context.Context, accountKey string) Status {
	now := g.clock().UTC()

	locked, lockedUntilMs, fails, err := g.store.RecordFailure(ctx, accountKey,
		now.UnixMilli(), g.threshold, g.lockDuration.Milliseconds(), failureTTL.Milliseconds())
	if err != nil {
		logger.From(ctx).Warn("lockout record failed open", "err", err)
		return Status{AttemptsRemaining: g.threshold}
	}

	if locked {
		return Status{Locked: true, Remaining: remainingUntil(lockedUntilMs, now)}
	}
	return Status{AttemptsRemaining: g.threshold - int(fails)}
}

// CheckLockout reports whether the key is currently locked. An expired lock
// reads as clean; the stale record is left to its TTL rather than deleted.
func (g *Guard) CheckLockout(ctx context.Context, accountKey string) Status {
	now := g.clock().UTC()

	lockedUntil, fails, err := g.store.Read(ctx, accountKey)
	if err != nil {
		logger.From(ctx).Warn("lockout check failed open", "err", err)
		return Status{AttemptsRemaining: g.threshold}
	}

	if lockedUntil > now.UnixMilli() {
		return Status{Locked: true, Remaining: remainingUntil(lockedUntil, now)}
	}

	remaining := g.threshold - int(fails)
	if remaining < 0 || lockedUntil != 0 {
		// Expired lock: the next failure streak starts clean.
		remaining = g.threshold
	}
	return Status{AttemptsRemaining: remaining}
}

// Clear removes the record entirely. Called only after a verified successful
// authentication.
func (g *Guard) Clear(ctx context.Context, accountKey string) {
	if err := g.store.Clear(ctx, accountKey); err != nil {
		logger.From(ctx).Warn("lockout clear failed", "err", err)
	}
}

// NormalizeKey canonicalizes an account identifier so "User@X" and "user@x "
// share one counter.
func NormalizeKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func remainingUntil(untilMs int64, now time.Time) time.Duration {
	d := time.UnixMilli(untilMs).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func parseInt64(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
