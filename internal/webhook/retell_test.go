package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"
	"time"

	"callbridge/internal/calls"
)

func signHex(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRetellVerify(t *testing.T) {
	a := NewRetellAdapter("topsecret")
	body := []byte(`{"event":"call_ended"}`)

	h := http.Header{}
	h.Set("X-Retell-Signature", signHex("topsecret", body))
	if err := a.Verify(h, body); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	h.Set("X-Retell-Signature", signHex("wrongsecret", body))
	if !errors.Is(a.Verify(h, body), ErrUnauthenticated) {
		t.Fatalf("expected bad signature rejected")
	}

	h.Del("X-Retell-Signature")
	if !errors.Is(a.Verify(h, body), ErrUnauthenticated) {
		t.Fatalf("expected missing signature rejected")
	}

	// Signature over a different body must not transfer.
	h.Set("X-Retell-Signature", signHex("topsecret", []byte(`{"event":"other"}`)))
	if !errors.Is(a.Verify(h, body), ErrUnauthenticated) {
		t.Fatalf("expected replayed signature rejected")
	}
}

func TestRetellVerifyFailsClosedWithoutSecret(t *testing.T) {
	a := NewRetellAdapter("")
	body := []byte(`{}`)
	h := http.Header{}
	h.Set("X-Retell-Signature", signHex("", body))
	if !errors.Is(a.Verify(h, body), ErrUnauthenticated) {
		t.Fatalf("expected unconfigured adapter to reject everything")
	}
}

func TestRetellParseAnalyzed(t *testing.T) {
	a := NewRetellAdapter("s")
	body := []byte(`{
		"event": "call_analyzed",
		"call": {
			"call_id": "ret-123",
			"transcript": "hello world",
			"recording_url": "https://retell.example/rec.mp3",
			"start_timestamp": 1717243200000,
			"end_timestamp": 1717243295000,
			"from_number": "+15550001111",
			"metadata": {"account_id": "acct-7"}
		}
	}`)

	ev, err := a.Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Type != calls.EventAnalyzed || ev.Provider != calls.ProviderRetell {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.ProviderCallID != "ret-123" || ev.AccountID != "acct-7" || ev.OriginAddress != "+15550001111" {
		t.Fatalf("identity fields wrong: %+v", ev)
	}
	wantStart := time.UnixMilli(1717243200000).UTC()
	if !ev.StartedAt.Equal(wantStart) {
		t.Fatalf("StartedAt = %v, want %v", ev.StartedAt, wantStart)
	}
	if ev.EndedAt.Sub(ev.StartedAt) != 95*time.Second {
		t.Fatalf("duration span = %v, want 95s", ev.EndedAt.Sub(ev.StartedAt))
	}
}

func TestRetellParseUnknownEventIsUnhandled(t *testing.T) {
	a := NewRetellAdapter("s")
	ev, err := a.Parse([]byte(`{"event":"agent_response"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ev.Type != calls.EventUnhandled {
		t.Fatalf("Type = %q, want unhandled", ev.Type)
	}
}

func TestRetellParseMalformed(t *testing.T) {
	a := NewRetellAdapter("s")

	if _, err := a.Parse([]byte(`{"event":`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for bad JSON, got %v", err)
	}
	if _, err := a.Parse([]byte(`{"call":{"call_id":"x"}}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without event, got %v", err)
	}
	if _, err := a.Parse([]byte(`{"event":"call_ended","call":{}}`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed without call_id, got %v", err)
	}
}

func TestRetellParseAbsentFieldsStayZero(t *testing.T) {
	a := NewRetellAdapter("s")
	ev, err := a.Parse([]byte(`{"event":"call_started","call":{"call_id":"ret-1"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !ev.StartedAt.IsZero() || !ev.EndedAt.IsZero() || ev.Transcript != "" || ev.AccountID != "" {
		t.Fatalf("absent provider fields must stay zero: %+v", ev)
	}
}
