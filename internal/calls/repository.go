package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidEvent = errors.New("invalid call event")
)

// UpsertResult is what the reconciler needs back from the atomic write:
// identity, whether the row is new, and the merged enrichment inputs.
type UpsertResult struct {
	ID              string
	Created         bool
	Transcript      string
	AccountID       string
	EnrichmentState EnrichmentState
}

// Repository is the persistence contract for call records.
//
// Every method is a single atomic storage operation. There is deliberately no
// Load/Save pair: the race between the client's "started" write and a provider
// webhook is resolved inside Upsert, not by callers.
type Repository interface {
	// Upsert inserts the event as a new record or merges it into the existing
	// row keyed by (provider, provider_call_id). id is used only on insert.
	Upsert(ctx context.Context, id string, ev CallEvent, now time.Time) (UpsertResult, error)

	Get(ctx context.Context, id string) (CallRecord, error)

	// BeginEnrichment transitions enrichment_state none -> pending and arms the
	// branch counter. Returns false (no error) when the state was already
	// pending or done; that is the at-most-once dispatch guard.
	BeginEnrichment(ctx context.Context, id string, branches int, now time.Time) (bool, error)

	// SaveSummary and SaveQuote each store their own field subset, decrement the
	// branch counter, and flip state to done when the last branch lands.
	SaveSummary(ctx context.Context, id, summary string, frustrationScore int, now time.Time) error
	SaveQuote(ctx context.Context, id, quote string, startSeconds, endSeconds float64, now time.Time) error

	// ResetEnrichment is the operator escape hatch: pending/done -> none.
	// Returns false when the record does not exist or is already none.
	ResetEnrichment(ctx context.Context, id string, now time.Time) (bool, error)
}

// PostgresRepo implements Repository on Postgres.
//
// Schema assumption: table call_records with
// UNIQUE (provider, provider_call_id); the uniqueness invariant lives in the
// database, not in read-then-write logic.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// Upsert performs the conflict-aware merge in one round trip.
//
// Merge policy (all in SQL so concurrent writers commute):
// - a stored non-null field always wins over the incoming value, so duplicate
//   deliveries and out-of-order started/ended events converge to the same row
// - duration_seconds is filled in exactly once, from the merged timestamps
func (r *PostgresRepo) Upsert(ctx context.Context, id string, ev CallEvent, now time.Time) (UpsertResult, error) {
	const q = `
INSERT INTO call_records (
  id, provider, provider_call_id, account_id, transcript, recording_url,
  started_at, ended_at, duration_seconds, session_type,
  enrichment_state, enrichment_pending_branches, created_at, updated_at
) VALUES (
  $1, $2, $3, NULLIF($4,''), NULLIF($5,''), NULLIF($6,''),
  $7, $8, $9, $10,
  'none', 0, $11, $11
)
ON CONFLICT (provider, provider_call_id) DO UPDATE SET
  account_id    = COALESCE(call_records.account_id, EXCLUDED.account_id),
  transcript    = COALESCE(call_records.transcript, EXCLUDED.transcript),
  recording_url = COALESCE(call_records.recording_url, EXCLUDED.recording_url),
  started_at    = COALESCE(call_records.started_at, EXCLUDED.started_at),
  ended_at      = COALESCE(call_records.ended_at, EXCLUDED.ended_at),
  duration_seconds = COALESCE(
    call_records.duration_seconds,
    EXCLUDED.duration_seconds,
    CASE
      WHEN COALESCE(call_records.started_at, EXCLUDED.started_at) IS NOT NULL
       AND COALESCE(call_records.ended_at, EXCLUDED.ended_at) IS NOT NULL
      THEN GREATEST(0, EXTRACT(EPOCH FROM
             COALESCE(call_records.ended_at, EXCLUDED.ended_at) -
             COALESCE(call_records.started_at, EXCLUDED.started_at)))::INT
    END),
  updated_at = EXCLUDED.updated_at
RETURNING id, (xmax = 0) AS created,
          COALESCE(transcript, ''), COALESCE(account_id, ''), enrichment_state
`
	sessionType := ev.SessionType
	if sessionType == "" {
		sessionType = SessionVoice
	}

	var out UpsertResult
	err := r.db.QueryRowContext(ctx, q,
		id,
		ev.Provider,
		ev.ProviderCallID,
		ev.AccountID,
		ev.Transcript,
		ev.RecordingURL,
		nullTime(ev.StartedAt),
		nullTime(ev.EndedAt),
		durationOf(ev),
		sessionType,
		now,
	).Scan(&out.ID, &out.Created, &out.Transcript, &out.AccountID, &out.EnrichmentState)
	if err != nil {
		return UpsertResult{}, err
	}
	return out, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallRecord, error) {
	const q = `
SELECT id, provider, provider_call_id, COALESCE(account_id,''),
       COALESCE(transcript,''), COALESCE(recording_url,''),
       COALESCE(started_at, 'epoch'::timestamptz), COALESCE(ended_at, 'epoch'::timestamptz),
       COALESCE(duration_seconds, 0), session_type,
       COALESCE(summary,''), COALESCE(frustration_score, 0),
       COALESCE(quotable_quote,''), COALESCE(quote_start_seconds, 0), COALESCE(quote_end_seconds, 0),
       enrichment_state, enrichment_pending_branches, created_at, updated_at
FROM call_records
WHERE id = $1
`
	var rec CallRecord
	var startedAt, endedAt time.Time
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&rec.ID,
		&rec.Provider,
		&rec.ProviderCallID,
		&rec.AccountID,
		&rec.Transcript,
		&rec.RecordingURL,
		&startedAt,
		&endedAt,
		&rec.DurationSeconds,
		&rec.SessionType,
		&rec.Summary,
		&rec.FrustrationScore,
		&rec.QuotableQuote,
		&rec.QuoteStartSeconds,
		&rec.QuoteEndSeconds,
		&rec.EnrichmentState,
		&rec.PendingBranches,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	if startedAt.Unix() != 0 {
		rec.StartedAt = startedAt
	}
	if endedAt.Unix() != 0 {
		rec.EndedAt = endedAt
	}
	return rec, nil
}

func (r *PostgresRepo) BeginEnrichment(ctx context.Context, id string, branches int, now time.Time) (bool, error) {
	const q = `
UPDATE call_records
SET enrichment_state = 'pending',
    enrichment_pending_branches = $2,
    updated_at = $3
WHERE id = $1 AND enrichment_state = 'none'
`
	res, err := r.db.ExecContext(ctx, q, id, branches, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) SaveSummary(ctx context.Context, id, summary string, frustrationScore int, now time.Time) error {
	const q = `
UPDATE call_records
SET summary = $2,
    frustration_score = $3,
    enrichment_pending_branches = enrichment_pending_branches - 1,
    enrichment_state = CASE WHEN enrichment_pending_branches - 1 <= 0 THEN 'done' ELSE enrichment_state END,
    updated_at = $4
WHERE id = $1 AND enrichment_state = 'pending'
`
	res, err := r.db.ExecContext(ctx, q, id, summary, frustrationScore, now)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (r *PostgresRepo) SaveQuote(ctx context.Context, id, quote string, startSeconds, endSeconds float64, now time.Time) error {
	const q = `
UPDATE call_records
SET quotable_quote = $2,
    quote_start_seconds = $3,
    quote_end_seconds = $4,
    enrichment_pending_branches = enrichment_pending_branches - 1,
    enrichment_state = CASE WHEN enrichment_pending_branches - 1 <= 0 THEN 'done' ELSE enrichment_state END,
    updated_at = $5
WHERE id = $1 AND enrichment_state = 'pending'
`
	res, err := r.db.ExecContext(ctx, q, id, quote, startSeconds, endSeconds, now)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (r *PostgresRepo) ResetEnrichment(ctx context.Context, id string, now time.Time) (bool, error) {
	const q = `
UPDATE call_records
SET enrichment_state = 'none',
    enrichment_pending_branches = 0,
    updated_at = $2
WHERE id = $1 AND enrichment_state IN ('pending', 'done')
`
	res, err := r.db.ExecContext(ctx, q, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

// durationOf computes the insert-time duration when the event itself carries
// both timestamps; otherwise the ON CONFLICT branch fills it in later.
func durationOf(ev CallEvent) sql.NullInt64 {
	if ev.StartedAt.IsZero() || ev.EndedAt.IsZero() {
		return sql.NullInt64{}
	}
	d := int64(ev.EndedAt.Sub(ev.StartedAt).Seconds())
	if d < 0 {
		d = 0
	}
	return sql.NullInt64{Int64: d, Valid: true}
}
