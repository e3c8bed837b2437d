package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal security events.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogWebhookAuthFailure records a delivery rejected by a signature/token check.
func (s *Service) LogWebhookAuthFailure(ctx context.Context, provider, ip string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeWebhookAuthFailed,
		Provider:  provider,
		IPAddress: ip,
		Message:   "webhook authenticity check failed",
	})
}

// LogAccountLocked records a lockout threshold being crossed.
func (s *Service) LogAccountLocked(ctx context.Context, accountKey, ip string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeAccountLocked,
		AccountID: accountKey,
		IPAddress: ip,
		Message:   "failed-login threshold reached",
	})
}

// LogEnrichmentReset records an operator re-arming enrichment for a call.
func (s *Service) LogEnrichmentReset(ctx context.Context, operatorAccountID, callID string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeEnrichmentReset,
		AccountID: operatorAccountID,
		CallID:    callID,
		Message:   "enrichment state reset to none",
	})
}
