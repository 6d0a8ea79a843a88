// Package doccrew provides a small Go client for the documentation crew
// REST API.
package doccrew

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sync"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the documentation crew REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// RunSubmission represents the payload required to create a new run.
type RunSubmission struct {
	ID        string         `json:"id,omitempty"`
	RepoPath  string         `json:"repo_path"`
	FileLabel string         `json:"file_label,omitempty"`
	Blueprint string         `json:"blueprint,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DocumentResult describes the generated documentation artifact.
type DocumentResult struct {
	DocumentPath string `json:"document_path"`
	Summary      string `json:"summary,omitempty"`
	TokensUsed   int    `json:"tokens_used"`
	TaskCount    int    `json:"task_count"`
	DurationMS   int64  `json:"duration_ms"`
}

// Run mirrors the server side run representation.
type Run struct {
	ID         string          `json:"id"`
	RepoPath   string          `json:"repo_path"`
	FileLabel  string          `json:"file_label"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     *DocumentResult `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// Stats mirrors the server side aggregate view.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("doccrew api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("doccrew api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the documentation crew API. When
// httpClient is nil, a default client with a sensible timeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken stores the API token sent with subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the currently stored token string.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SubmitRun creates a new documentation run.
func (c *Client) SubmitRun(ctx context.Context, submission RunSubmission) (*Run, error) {
	var submitted Run
	if err := c.post(ctx, "/api/v1/runs", submission, &submitted); err != nil {
		return nil, err
	}
	return &submitted, nil
}

// GetRun fetches run details by identifier.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	var detail Run
	endpoint := "/api/v1/runs/" + url.PathEscape(runID)
	if err := c.get(ctx, endpoint, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListRuns returns recent runs, optionally filtered by status.
func (c *Client) ListRuns(ctx context.Context, statuses ...string) ([]Run, error) {
	endpoint := "/api/v1/runs"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		endpoint += "?" + values.Encode()
	}
	var runs []Run
	if err := c.get(ctx, endpoint, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetStats returns aggregate counters for the run pipeline.
func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.get(ctx, "/api/v1/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// WaitForRun polls the run until it reaches a terminal status or the context
// is cancelled.
func (c *Client) WaitForRun(ctx context.Context, runID string, interval time.Duration) (*Run, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		current, err := c.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}
		if current.Status == "succeeded" || current.Status == "failed" {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parsed.Path), RawQuery: parsed.RawQuery}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
