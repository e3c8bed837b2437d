package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"callbridge/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Sliding-window usage cap, measured in seconds of call time per origin
// address. The window slides from the first report after expiry, not from a
// calendar boundary.
const (
	// WindowSeconds is both the window length and the allowance within it.
	WindowSeconds = 420

	// MaxPerReport bounds a single usage report, so one malicious call cannot
	// burn more than this many seconds at once.
	MaxPerReport = 600
)

var errBadReply = errors.New("unexpected store reply")

type Result struct {
	UsedSeconds      int       `json:"used_seconds"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Limited          bool      `json:"limited"`
	WindowStart      time.Time `json:"window_start"`
}

// Limiter tracks per-address usage through a Store.
//
// Infra failure policy: fail open. A storage outage grants the full allowance
// rather than blocking callers.
type Limiter struct {
	store Store

	window       time.Duration
	allowance    int
	maxPerReport int
	clock        func() time.Time
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return NewLimiterWithStore(NewRedisStore(rdb))
}

func NewLimiterWithStore(store Store) *Limiter {
	return &Limiter{
		store:        store,
		window:       WindowSeconds * time.Second,
		allowance:    WindowSeconds,
		maxPerReport: MaxPerReport,
		clock:        time.Now,
	}
}

// Consume atomically adds usage for addr, resetting the window first when it
// has elapsed. seconds is clamped to [0, MaxPerReport] server-side.
func (l *Limiter) Consume(ctx context.Context, addr string, seconds int) Result {
	now := l.clock().UTC()
	seconds = clampSeconds(seconds, l.maxPerReport)

	startMs, used, err := l.store.Consume(ctx, addr, now.UnixMilli(), l.window.Milliseconds(), int64(seconds))
	if err != nil {
		logger.From(ctx).Warn("usage consume failed open", "addr", addr, "err", err)
		return l.openResult(now)
	}
	return l.resultFrom(startMs, used)
}

// Check reports current usage without mutating. An expired or absent window
// reads as a fresh one.
func (l *Limiter) Check(ctx context.Context, addr string) Result {
	now := l.clock().UTC()

	startMs, used, found, err := l.store.Read(ctx, addr)
	if err != nil {
		logger.From(ctx).Warn("usage check failed open", "addr", addr, "err", err)
		return l.openResult(now)
	}
	if !found || now.UnixMilli()-startMs >= l.window.Milliseconds() {
		return l.openResult(now)
	}
	return l.resultFrom(startMs, used)
}

func (l *Limiter) resultFrom(startMs, used int64) Result {
	remaining := l.allowance - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		UsedSeconds:      int(used),
		RemainingSeconds: remaining,
		Limited:          l.allowance-int(used) <= 0,
		WindowStart:      time.UnixMilli(startMs).UTC(),
	}
}

func (l *Limiter) openResult(now time.Time) Result {
	return Result{
		UsedSeconds:      0,
		RemainingSeconds: l.allowance,
		Limited:          false,
		WindowStart:      now,
	}
}

func clampSeconds(n, max int) int {
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func toInt64(v any) (int64, bool) {
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
