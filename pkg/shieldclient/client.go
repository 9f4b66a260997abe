// Package shieldclient is a small HTTP client for a running PromptShield
// service. Result types mirror the service's wire JSON, so external callers
// never import the service internals.
package shieldclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Result is the service's verdict for one checked prompt.
type Result struct {
	Safe           bool    `json:"is_safe"`
	AttackDetected bool    `json:"attack_detected"`
	AttackType     string  `json:"attack_type"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason,omitempty"`
	Flagged        bool    `json:"flagged"`
	Cached         bool    `json:"cached"`
}

// ShouldBlock reports a high-confidence attack the caller should reject.
func (r *Result) ShouldBlock() bool {
	return r.AttackDetected && r.Confidence >= 0.8
}

// ShouldFlag reports a mid-confidence attack: allow, but surface for review.
func (r *Result) ShouldFlag() bool {
	return r.AttackDetected && r.Confidence >= 0.4 && r.Confidence < 0.8
}

// CheckResponse wraps the result with the per-call correlation token.
type CheckResponse struct {
	Result    *Result `json:"result"`
	RequestID string  `json:"request_id"`
}

// Stats summarizes attack activity inside a trailing window.
type Stats struct {
	PeriodDays            int             `json:"period_days"`
	TotalAttacks          int64           `json:"total_attacks"`
	HighConfidenceAttacks int64           `json:"high_confidence_attacks"`
	ByCategory            []CategoryCount `json:"by_category"`
}

// CategoryCount is one category bucket.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// Attack is one persisted attack record.
type Attack struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
	Preview     string    `json:"preview"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"`
	Explanation string    `json:"explanation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RepeatOffender is one fingerprint group meeting the minimum repeat count.
type RepeatOffender struct {
	Fingerprint   string  `json:"fingerprint"`
	Preview       string  `json:"preview"`
	Count         int64   `json:"count"`
	MaxConfidence float64 `json:"max_confidence"`
}

// Client calls a PromptShield service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends the shared secret in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check classifies one prompt. contextHint is optional and may be empty.
func (c *Client) Check(ctx context.Context, prompt, contextHint string) (*CheckResponse, error) {
	body := map[string]string{"prompt": prompt}
	if contextHint != "" {
		body["context"] = contextHint
	}
	var resp CheckResponse
	if err := c.post(ctx, "/check", body, &resp); err != nil {
		return nil, fmt.Errorf("Check: %w", err)
	}
	return &resp, nil
}

// Stats fetches attack statistics for the trailing window.
func (c *Client) Stats(ctx context.Context, days int) (*Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/stats", url.Values{"days": {strconv.Itoa(days)}}, &stats); err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return &stats, nil
}

// RecentAttacks fetches the newest attack records.
func (c *Client) RecentAttacks(ctx context.Context, limit int) ([]Attack, error) {
	var attacks []Attack
	if err := c.get(ctx, "/attacks", url.Values{"limit": {strconv.Itoa(limit)}}, &attacks); err != nil {
		return nil, fmt.Errorf("RecentAttacks: %w", err)
	}
	return attacks, nil
}

// RepeatOffenders fetches fingerprint groups with repeated attacks.
func (c *Client) RepeatOffenders(ctx context.Context, minCount, days int) ([]RepeatOffender, error) {
	q := url.Values{
		"min_count": {strconv.Itoa(minCount)},
		"days":      {strconv.Itoa(days)},
	}
	var offenders []RepeatOffender
	if err := c.get(ctx, "/repeat-offenders", q, &offenders); err != nil {
		return nil, fmt.Errorf("RepeatOffenders: %w", err)
	}
	return offenders, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("service returned status %d: %s", resp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("service returned status %d", resp.StatusCode)
	}

	return json.Unmarshal(body, out)
}
