package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"callbridge/internal/calls"
)

// RetellAdapter decodes Retell call lifecycle webhooks.
//
// Retell signs the raw request body with HMAC-SHA256 and sends the hex digest
// in X-Retell-Signature. Timestamps are unix milliseconds.
type RetellAdapter struct {
	secret string
}

func NewRetellAdapter(secret string) *RetellAdapter {
	return &RetellAdapter{secret: secret}
}

func (a *RetellAdapter) Provider() calls.Provider { return calls.ProviderRetell }

func (a *RetellAdapter) Verify(headers http.Header, body []byte) error {
	if a.secret == "" {
		// Misconfiguration fails closed: no secret means no accepted deliveries.
		return ErrUnauthenticated
	}
	sig := headers.Get("X-Retell-Signature")
	if sig == "" || !validHexHMAC(a.secret, body, sig) {
		return ErrUnauthenticated
	}
	return nil
}

type retellPayload struct {
	Event string `json:"event"`
	Call  struct {
		CallID         string `json:"call_id"`
		Transcript     string `json:"transcript"`
		RecordingURL   string `json:"recording_url"`
		StartTimestamp int64  `json:"start_timestamp"`
		EndTimestamp   int64  `json:"end_timestamp"`
		FromNumber     string `json:"from_number"`
		Metadata       struct {
			AccountID string `json:"account_id"`
		} `json:"metadata"`
	} `json:"call"`
}

func (a *RetellAdapter) Parse(body []byte) (calls.CallEvent, error) {
	var p retellPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return calls.CallEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Event == "" {
		return calls.CallEvent{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}

	var evType calls.EventType
	switch p.Event {
	case "call_started":
		evType = calls.EventStarted
	case "call_ended":
		evType = calls.EventEnded
	case "call_analyzed":
		evType = calls.EventAnalyzed
	default:
		return calls.CallEvent{Provider: calls.ProviderRetell, Type: calls.EventUnhandled}, nil
	}

	if p.Call.CallID == "" {
		return calls.CallEvent{}, fmt.Errorf("%w: missing call_id", ErrMalformed)
	}

	ev := calls.CallEvent{
		Provider:       calls.ProviderRetell,
		ProviderCallID: p.Call.CallID,
		Type:           evType,
		Transcript:     p.Call.Transcript,
		RecordingURL:   normalizeRecordingURL(p.Call.RecordingURL, ""),
		AccountID:      p.Call.Metadata.AccountID,
		OriginAddress:  p.Call.FromNumber,
	}
	if p.Call.StartTimestamp > 0 {
		ev.StartedAt = time.UnixMilli(p.Call.StartTimestamp).UTC()
	}
	if p.Call.EndTimestamp > 0 {
		ev.EndedAt = time.UnixMilli(p.Call.EndTimestamp).UTC()
	}
	return ev, nil
}
