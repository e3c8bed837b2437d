package audit

import "time"

// Event is an immutable, append-only security-event record.
//
// Invariants:
// - Events are never updated or deleted.
// - Capture is best-effort; do not block critical flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the security category of the record.
	Type EventType `json:"type" db:"type"`

	// AccountID is the affected account, when one is known.
	AccountID string `json:"account_id,omitempty" db:"account_id"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	Provider string `json:"provider,omitempty" db:"provider"`
	CallID   string `json:"call_id,omitempty" db:"call_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventTypeWebhookAuthFailed records a webhook delivery that failed its
	// authenticity check. Never silently dropped.
	EventTypeWebhookAuthFailed EventType = "webhook_auth_failed"

	// EventTypeAccountLocked records a failed-login streak tripping the lockout.
	EventTypeAccountLocked EventType = "account_locked"

	// EventTypeEnrichmentReset records an operator re-arming enrichment for a call.
	EventTypeEnrichmentReset EventType = "enrichment_reset"
)
