package calls

import "time"

// Provider identifies which third-party call platform produced an event.
type Provider string

const (
	ProviderRetell  Provider = "retell"
	ProviderVapi    Provider = "vapi"
	ProviderLiveKit Provider = "livekit"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderRetell, ProviderVapi, ProviderLiveKit:
		return true
	default:
		return false
	}
}

// EventType is the canonical lifecycle event kind, provider strings already mapped.
type EventType string

const (
	EventStarted  EventType = "started"
	EventEnded    EventType = "ended"
	EventAnalyzed EventType = "analyzed"

	// EventUnhandled covers provider event types we acknowledge but do not act on.
	EventUnhandled EventType = "unhandled"
)

// CallEvent is the provider-agnostic view of one webhook delivery (or one
// client-side "call started" write). It is transient: the reconciler consumes
// it and it is never persisted as-is.
//
// Zero values mean "provider didn't say". Adapters must not default-fill
// absent fields; the merge policy relies on that distinction.
type CallEvent struct {
	Provider       Provider
	ProviderCallID string
	Type           EventType

	Transcript    string
	RecordingURL  string
	StartedAt     time.Time
	EndedAt       time.Time
	AccountID     string
	OriginAddress string
	SessionType   SessionType
}

type SessionType string

const (
	SessionVoice SessionType = "voice"
	SessionText  SessionType = "text"
)

// EnrichmentState gates the post-call enrichment pipeline.
// Legal transitions: none -> pending -> done. Operator reset moves
// pending/done back to none; nothing else may.
type EnrichmentState string

const (
	EnrichmentNone    EnrichmentState = "none"
	EnrichmentPending EnrichmentState = "pending"
	EnrichmentDone    EnrichmentState = "done"
)

// CallRecord is the canonical persisted call.
//
// Field ownership: the reconciler writes identity/transcript/timing fields,
// the enrichment dispatcher writes summary/quote/enrichment fields. The two
// never touch the same column, so their writes need no coordination.
type CallRecord struct {
	ID             string    `json:"id" db:"id"`
	Provider       Provider  `json:"provider" db:"provider"`
	ProviderCallID string    `json:"provider_call_id" db:"provider_call_id"`
	AccountID      string    `json:"account_id,omitempty" db:"account_id"`

	Transcript   string    `json:"transcript,omitempty" db:"transcript"`
	RecordingURL string    `json:"recording_url,omitempty" db:"recording_url"`
	StartedAt    time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is computed once from ended_at - started_at when both are
	// known, and never recomputed after that. Zero means not yet computed.
	DurationSeconds int `json:"duration_seconds,omitempty" db:"duration_seconds"`

	SessionType SessionType `json:"session_type" db:"session_type"`

	// Enrichment-owned fields.
	Summary           string  `json:"summary,omitempty" db:"summary"`
	FrustrationScore  int     `json:"frustration_score,omitempty" db:"frustration_score"`
	QuotableQuote     string  `json:"quotable_quote,omitempty" db:"quotable_quote"`
	QuoteStartSeconds float64 `json:"quote_start_seconds,omitempty" db:"quote_start_seconds"`
	QuoteEndSeconds   float64 `json:"quote_end_seconds,omitempty" db:"quote_end_seconds"`

	EnrichmentState EnrichmentState `json:"enrichment_state" db:"enrichment_state"`
	// PendingBranches counts enrichment branches still in flight while state is
	// pending; the branch that drives it to zero flips state to done.
	PendingBranches int `json:"-" db:"enrichment_pending_branches"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ReconcileOutcome reports what a reconcile did to storage.
type ReconcileOutcome string

const (
	OutcomeCreated ReconcileOutcome = "created"
	OutcomeUpdated ReconcileOutcome = "updated"
	OutcomeIgnored ReconcileOutcome = "ignored"
)

type ReconcileResult struct {
	Outcome ReconcileOutcome
	CallID  string

	// EnrichmentEligible is true when this event completed a call that has a
	// transcript, an account, and has not been enriched yet. The caller decides
	// whether to schedule the dispatcher; the reconciler never blocks on it.
	EnrichmentEligible bool

	// Transcript is the merged transcript after this write, handed to the
	// dispatcher so it does not re-read the record.
	Transcript string
}
