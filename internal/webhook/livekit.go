package webhook

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"callbridge/internal/calls"
)

// LiveKitAdapter decodes LiveKit room/egress webhooks.
//
// Deliveries carry a bearer token in Authorization. Room metadata is an
// app-controlled JSON blob set at room creation; the account association
// rides in it. Egress file results land in S3 and are normalized to HTTPS.
type LiveKitAdapter struct {
	token           string
	recordingBucket string
}

func NewLiveKitAdapter(token, recordingBucket string) *LiveKitAdapter {
	return &LiveKitAdapter{token: token, recordingBucket: recordingBucket}
}

func (a *LiveKitAdapter) Provider() calls.Provider { return calls.ProviderLiveKit }

func (a *LiveKitAdapter) Verify(headers http.Header, body []byte) error {
	if a.token == "" {
		return ErrUnauthenticated
	}
	raw := strings.TrimSpace(headers.Get("Authorization"))
	tok, ok := strings.CutPrefix(raw, "Bearer ")
	if !ok || !secureEqual(a.token, strings.TrimSpace(tok)) {
		return ErrUnauthenticated
	}
	return nil
}

type livekitPayload struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"createdAt"` // unix seconds, LiveKit server clock
	Room      struct {
		Name     string `json:"name"`
		Metadata string `json:"metadata"`
	} `json:"room"`
	EgressInfo struct {
		RoomName    string `json:"roomName"`
		FileResults []struct {
			Location string `json:"location"`
		} `json:"fileResults"`
	} `json:"egressInfo"`
}

type roomMetadata struct {
	AccountID string `json:"account_id"`
}

func (a *LiveKitAdapter) Parse(body []byte) (calls.CallEvent, error) {
	var p livekitPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return calls.CallEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Event == "" {
		return calls.CallEvent{}, fmt.Errorf("%w: missing event", ErrMalformed)
	}

	var evType calls.EventType
	switch p.Event {
	case "room_started":
		evType = calls.EventStarted
	case "room_finished":
		evType = calls.EventEnded
	case "egress_ended":
		evType = calls.EventAnalyzed
	default:
		return calls.CallEvent{Provider: calls.ProviderLiveKit, Type: calls.EventUnhandled}, nil
	}

	roomName := p.Room.Name
	if roomName == "" {
		roomName = p.EgressInfo.RoomName
	}
	if roomName == "" {
		return calls.CallEvent{}, fmt.Errorf("%w: missing room name", ErrMalformed)
	}

	ev := calls.CallEvent{
		Provider:       calls.ProviderLiveKit,
		ProviderCallID: roomName,
		Type:           evType,
	}

	if p.CreatedAt > 0 {
		at := time.Unix(p.CreatedAt, 0).UTC()
		switch evType {
		case calls.EventStarted:
			ev.StartedAt = at
		case calls.EventEnded:
			ev.EndedAt = at
		}
	}

	// Room metadata is set by our own client at room creation; a foreign or
	// empty blob just means an anonymous call.
	if p.Room.Metadata != "" {
		var md roomMetadata
		if err := json.Unmarshal([]byte(p.Room.Metadata), &md); err == nil {
			ev.AccountID = md.AccountID
		}
	}

	for _, f := range p.EgressInfo.FileResults {
		if f.Location != "" {
			ev.RecordingURL = normalizeRecordingURL(f.Location, a.recordingBucket)
			break
		}
	}
	return ev, nil
}
