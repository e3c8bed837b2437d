package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Summarizer and QuoteExtractor are the two external text-generation services.
// They are independent: one failing or being disabled never affects the other.

type Summary struct {
	Summary          string `json:"summary"`
	FrustrationScore int    `json:"frustration_score"`
}

type Quote struct {
	Text         string  `json:"quote"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (Summary, error)
}

type QuoteExtractor interface {
	Extract(ctx context.Context, transcript string) (Quote, error)
}

// HTTPSummarizer calls the summarization service over JSON/HTTPS.
type HTTPSummarizer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPSummarizer(baseURL, apiKey string) *HTTPSummarizer {
	return &HTTPSummarizer{baseURL: baseURL, apiKey: apiKey, client: &http.Client{}}
}

func (c *HTTPSummarizer) Summarize(ctx context.Context, transcript string) (Summary, error) {
	var out Summary
	if err := postJSON(ctx, c.client, c.baseURL, c.apiKey, transcriptRequest{Transcript: transcript}, &out); err != nil {
		return Summary{}, fmt.Errorf("summarizer: %w", err)
	}
	return out, nil
}

// HTTPQuoteExtractor calls the quotable-moment service over JSON/HTTPS.
type HTTPQuoteExtractor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPQuoteExtractor(baseURL, apiKey string) *HTTPQuoteExtractor {
	return &HTTPQuoteExtractor{baseURL: baseURL, apiKey: apiKey, client: &http.Client{}}
}

func (c *HTTPQuoteExtractor) Extract(ctx context.Context, transcript string) (Quote, error) {
	var out Quote
	if err := postJSON(ctx, c.client, c.baseURL, c.apiKey, transcriptRequest{Transcript: transcript}, &out); err != nil {
		return Quote{}, fmt.Errorf("quote extractor: %w", err)
	}
	return out, nil
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

func postJSON(ctx context.Context, client *http.Client, url, apiKey string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	return json.Unmarshal(raw, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
