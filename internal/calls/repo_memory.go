package calls

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo mirrors the Postgres merge semantics in memory. It backs unit
// tests and local development; the SQL in PostgresRepo is the production path.
type MemoryRepo struct {
	mu    sync.Mutex
	byKey map[recordKey]*CallRecord
	byID  map[string]*CallRecord
}

type recordKey struct {
	provider Provider
	callID   string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byKey: make(map[recordKey]*CallRecord),
		byID:  make(map[string]*CallRecord),
	}
}

func (r *MemoryRepo) Upsert(ctx context.Context, id string, ev CallEvent, now time.Time) (UpsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := recordKey{provider: ev.Provider, callID: ev.ProviderCallID}
	rec, ok := r.byKey[key]
	if !ok {
		sessionType := ev.SessionType
		if sessionType == "" {
			sessionType = SessionVoice
		}
		rec = &CallRecord{
			ID:              id,
			Provider:        ev.Provider,
			ProviderCallID:  ev.ProviderCallID,
			AccountID:       ev.AccountID,
			Transcript:      ev.Transcript,
			RecordingURL:    ev.RecordingURL,
			StartedAt:       ev.StartedAt,
			EndedAt:         ev.EndedAt,
			SessionType:     sessionType,
			EnrichmentState: EnrichmentNone,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		rec.DurationSeconds = computeDuration(rec.StartedAt, rec.EndedAt)
		r.byKey[key] = rec
		r.byID[id] = rec
		return UpsertResult{
			ID:              rec.ID,
			Created:         true,
			Transcript:      rec.Transcript,
			AccountID:       rec.AccountID,
			EnrichmentState: rec.EnrichmentState,
		}, nil
	}

	// Merge: stored non-empty fields always win, so replays are no-ops.
	if rec.AccountID == "" {
		rec.AccountID = ev.AccountID
	}
	if rec.Transcript == "" {
		rec.Transcript = ev.Transcript
	}
	if rec.RecordingURL == "" {
		rec.RecordingURL = ev.RecordingURL
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = ev.StartedAt
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = ev.EndedAt
	}
	if rec.DurationSeconds == 0 {
		rec.DurationSeconds = computeDuration(rec.StartedAt, rec.EndedAt)
	}
	rec.UpdatedAt = now

	return UpsertResult{
		ID:              rec.ID,
		Created:         false,
		Transcript:      rec.Transcript,
		AccountID:       rec.AccountID,
		EnrichmentState: rec.EnrichmentState,
	}, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return *rec, nil
}

func (r *MemoryRepo) BeginEnrichment(ctx context.Context, id string, branches int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.EnrichmentState != EnrichmentNone {
		return false, nil
	}
	rec.EnrichmentState = EnrichmentPending
	rec.PendingBranches = branches
	rec.UpdatedAt = now
	return true, nil
}

func (r *MemoryRepo) SaveSummary(ctx context.Context, id, summary string, frustrationScore int, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.EnrichmentState != EnrichmentPending {
		return ErrNotFound
	}
	rec.Summary = summary
	rec.FrustrationScore = frustrationScore
	r.finishBranch(rec, now)
	return nil
}

func (r *MemoryRepo) SaveQuote(ctx context.Context, id, quote string, startSeconds, endSeconds float64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.EnrichmentState != EnrichmentPending {
		return ErrNotFound
	}
	rec.QuotableQuote = quote
	rec.QuoteStartSeconds = startSeconds
	rec.QuoteEndSeconds = endSeconds
	r.finishBranch(rec, now)
	return nil
}

func (r *MemoryRepo) ResetEnrichment(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.EnrichmentState == EnrichmentNone {
		return false, nil
	}
	rec.EnrichmentState = EnrichmentNone
	rec.PendingBranches = 0
	rec.UpdatedAt = now
	return true, nil
}

func (r *MemoryRepo) finishBranch(rec *CallRecord, now time.Time) {
	rec.PendingBranches--
	if rec.PendingBranches <= 0 {
		rec.EnrichmentState = EnrichmentDone
	}
	rec.UpdatedAt = now
}

func computeDuration(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 0
	}
	d := int(end.Sub(start).Seconds())
	if d < 0 {
		return 0
	}
	return d
}
