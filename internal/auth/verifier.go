package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"callbridge/internal/config"
)

// ErrBadCredentials means the session service rejected the credentials.
// Any other verifier error is an upstream/transport failure and must NOT
// count against the caller's lockout budget.
var ErrBadCredentials = errors.New("bad credentials")

// CredentialVerifier checks an account's credentials against whatever backs
// identity. Verify returns the canonical account id on success.
type CredentialVerifier interface {
	Verify(ctx context.Context, accountKey, password string) (string, error)
}

// HTTPVerifier delegates credential checks to the external session service.
type HTTPVerifier struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPVerifier(cfg config.SessionConfig) *HTTPVerifier {
	return &HTTPVerifier{
		url:    cfg.VerifyURL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, accountKey, password string) (string, error) {
	if v.url == "" {
		return "", errors.New("session verify url not configured")
	}

	body, err := json.Marshal(map[string]string{
		"account_key": accountKey,
		"password":    password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("session verify: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out struct {
			AccountID string `json:"account_id"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
			return "", fmt.Errorf("session verify: decode: %w", err)
		}
		if out.AccountID == "" {
			return "", errors.New("session verify: empty account_id")
		}
		return out.AccountID, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrBadCredentials
	default:
		return "", fmt.Errorf("session verify: unexpected status %d", resp.StatusCode)
	}
}
