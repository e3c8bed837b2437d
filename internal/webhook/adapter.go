package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"callbridge/internal/calls"
)

// Adapter turns one provider's webhook delivery into a canonical CallEvent.
//
// Verify and Parse are separate on purpose: an invalid signature must be
// rejected before any payload interpretation happens, and it is a security
// event rather than a validation error.
type Adapter interface {
	Provider() calls.Provider
	Verify(headers http.Header, body []byte) error
	Parse(body []byte) (calls.CallEvent, error)
}

var (
	ErrUnauthenticated = errors.New("webhook authenticity check failed")
	ErrMalformed       = errors.New("malformed webhook payload")
)

// Registry maps the :provider path segment to its adapter.
type Registry map[string]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[string(a.Provider())] = a
	}
	return r
}

func (r Registry) Lookup(tag string) (Adapter, bool) {
	a, ok := r[strings.ToLower(strings.TrimSpace(tag))]
	return a, ok
}

func validHexHMAC(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// normalizeRecordingURL rewrites provider storage URIs into directly fetchable
// HTTPS locations. LiveKit egress reports s3:// object locations (and
// sometimes bare object keys when the bucket is implied by configuration);
// Retell and Vapi already deliver HTTPS URLs, which pass through untouched.
func normalizeRecordingURL(raw, defaultBucket string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(raw, "s3://"); ok {
		bucket, key, found := strings.Cut(rest, "/")
		if !found || bucket == "" || key == "" {
			return raw
		}
		return "https://" + bucket + ".s3.amazonaws.com/" + key
	}
	if !strings.Contains(raw, "://") && defaultBucket != "" {
		return "https://" + defaultBucket + ".s3.amazonaws.com/" + strings.TrimPrefix(raw, "/")
	}
	return raw
}
