package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"callbridge/internal/calls"
)

// VapiAdapter decodes Vapi server-message webhooks.
//
// Vapi authenticates with a shared secret echoed back in X-Vapi-Secret.
// Timestamps are RFC3339.
type VapiAdapter struct {
	secret string
}

func NewVapiAdapter(secret string) *VapiAdapter {
	return &VapiAdapter{secret: secret}
}

func (a *VapiAdapter) Provider() calls.Provider { return calls.ProviderVapi }

func (a *VapiAdapter) Verify(headers http.Header, body []byte) error {
	if a.secret == "" {
		return ErrUnauthenticated
	}
	if !secureEqual(a.secret, headers.Get("X-Vapi-Secret")) {
		return ErrUnauthenticated
	}
	return nil
}

type vapiPayload struct {
	Message struct {
		Type      string    `json:"type"`
		Status    string    `json:"status"`
		StartedAt time.Time `json:"startedAt"`
		EndedAt   time.Time `json:"endedAt"`
		Call      struct {
			ID       string `json:"id"`
			Customer struct {
				Number string `json:"number"`
			} `json:"customer"`
			Metadata struct {
				AccountID string `json:"accountId"`
			} `json:"metadata"`
		} `json:"call"`
		Artifact struct {
			Transcript   string `json:"transcript"`
			RecordingURL string `json:"recordingUrl"`
		} `json:"artifact"`
	} `json:"message"`
}

func (a *VapiAdapter) Parse(body []byte) (calls.CallEvent, error) {
	var p vapiPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return calls.CallEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	m := p.Message
	if m.Type == "" {
		return calls.CallEvent{}, fmt.Errorf("%w: missing message.type", ErrMalformed)
	}

	var evType calls.EventType
	switch m.Type {
	case "status-update":
		switch m.Status {
		case "in-progress":
			evType = calls.EventStarted
		case "ended":
			evType = calls.EventEnded
		default:
			return calls.CallEvent{Provider: calls.ProviderVapi, Type: calls.EventUnhandled}, nil
		}
	case "end-of-call-report":
		evType = calls.EventAnalyzed
	default:
		return calls.CallEvent{Provider: calls.ProviderVapi, Type: calls.EventUnhandled}, nil
	}

	if m.Call.ID == "" {
		return calls.CallEvent{}, fmt.Errorf("%w: missing call.id", ErrMalformed)
	}

	return calls.CallEvent{
		Provider:       calls.ProviderVapi,
		ProviderCallID: m.Call.ID,
		Type:           evType,
		Transcript:     m.Artifact.Transcript,
		RecordingURL:   normalizeRecordingURL(m.Artifact.RecordingURL, ""),
		StartedAt:      m.StartedAt.UTC(),
		EndedAt:        m.EndedAt.UTC(),
		AccountID:      m.Call.Metadata.AccountID,
		OriginAddress:  m.Call.Customer.Number,
	}, nil
}
