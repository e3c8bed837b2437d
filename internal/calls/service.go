package calls

import (
	"context"
	"time"

	"callbridge/pkg/logger"

	"github.com/google/uuid"
)

// Reconciler folds call events into canonical records.
//
// Concurrency model: the client's "started" write and a provider's "ended"
// webhook may arrive in either order, possibly on different process instances.
// All serialization happens in Repository.Upsert; this service only validates,
// retries transient storage failures, and reports the outcome.
type Reconciler struct {
	repo  Repository
	clock func() time.Time

	maxAttempts int
	backoffBase time.Duration
}

func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{
		repo:        repo,
		clock:       time.Now,
		maxAttempts: 3,
		backoffBase: 100 * time.Millisecond,
	}
}

// Reconcile performs the idempotent upsert for one event.
//
// Unhandled events are acknowledged but produce no storage write. Storage
// errors are retried with exponential backoff; exhaustion propagates so the
// HTTP layer can return 5xx and let the provider redeliver (safe: replays of
// the same event are no-ops).
func (r *Reconciler) Reconcile(ctx context.Context, ev CallEvent) (ReconcileResult, error) {
	if ev.Type == EventUnhandled {
		return ReconcileResult{Outcome: OutcomeIgnored}, nil
	}
	if !ev.Provider.Valid() || ev.ProviderCallID == "" {
		return ReconcileResult{}, ErrInvalidEvent
	}
	switch ev.Type {
	case EventStarted, EventEnded, EventAnalyzed:
	default:
		return ReconcileResult{}, ErrInvalidEvent
	}

	now := r.clock().UTC()
	id := uuid.NewString()

	var res UpsertResult
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		res, err = r.repo.Upsert(ctx, id, ev, now)
		if err == nil {
			break
		}
		if attempt == r.maxAttempts-1 {
			break
		}
		logger.From(ctx).Warn("call upsert retrying",
			"provider", ev.Provider, "provider_call_id", ev.ProviderCallID, "attempt", attempt+1, "err", err)
		if werr := sleepCtx(ctx, r.backoffBase<<uint(attempt)); werr != nil {
			return ReconcileResult{}, werr
		}
	}
	if err != nil {
		return ReconcileResult{}, err
	}

	out := ReconcileResult{
		CallID:     res.ID,
		Outcome:    OutcomeUpdated,
		Transcript: res.Transcript,
	}
	if res.Created {
		out.Outcome = OutcomeCreated
	}

	// Enrichment requires a finished call with a transcript and an owner.
	// The state check here is advisory; BeginEnrichment re-checks atomically.
	if (ev.Type == EventEnded || ev.Type == EventAnalyzed) &&
		res.Transcript != "" && res.AccountID != "" && res.EnrichmentState == EnrichmentNone {
		out.EnrichmentEligible = true
	}
	return out, nil
}

// StartCall is the client-side early write. It issues the same commutative
// upsert as the webhook path, so whichever writer lands first is irrelevant.
func (r *Reconciler) StartCall(ctx context.Context, provider Provider, providerCallID, accountID string, sessionType SessionType) (ReconcileResult, error) {
	return r.Reconcile(ctx, CallEvent{
		Provider:       provider,
		ProviderCallID: providerCallID,
		Type:           EventStarted,
		AccountID:      accountID,
		StartedAt:      r.clock().UTC(),
		SessionType:    sessionType,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
