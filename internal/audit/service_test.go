package audit

import (
	"context"
	"testing"
	"time"
)

func TestAppend_RejectsMissingType(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if err := s.Append(context.Background(), Event{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewService(repo)
	s.clock = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	if err := s.LogWebhookAuthFailure(context.Background(), "retell", "203.0.113.9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if e.Type != EventTypeWebhookAuthFailed || e.Provider != "retell" {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Fatalf("expected timestamp")
	}
}

func TestAppend_RequiresRepository(t *testing.T) {
	s := NewService(nil)
	if err := s.LogAccountLocked(context.Background(), "acct@example.com", ""); err == nil {
		t.Fatalf("expected error without repository")
	}
}
