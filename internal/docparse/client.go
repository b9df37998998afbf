package docparse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Job statuses reported by the vendor polling endpoint.
const (
	JobStatusPending   = "pending"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Config holds vendor client settings. Poll interval and timeout are
// explicit parameters so tests can run a sub-second fast-poll configuration
// against a stub server; they are never derived from hidden environment
// branches.
type Config struct {
	BaseURL string
	APIKey  string
	// Model selects the vendor extraction model.
	Model string
	// PollInterval is the delay between parse-job status polls.
	PollInterval time.Duration
	// PollTimeout is the wall-clock budget for one parse job.
	PollTimeout time.Duration
	// RequestTimeout bounds each individual HTTP call.
	RequestTimeout time.Duration
	// MaxRetries is the number of retries for transient HTTP failures.
	MaxRetries int
	// RetryBackoff is the base delay between retries, multiplied by the
	// attempt number.
	RetryBackoff time.Duration
}

// DefaultConfig returns production defaults: 5s polls with a 10 minute
// budget, matching the vendor's guidance for large documents.
func DefaultConfig() Config {
	return Config{
		Model:          "extract-latest",
		PollInterval:   5 * time.Second,
		PollTimeout:    10 * time.Minute,
		RequestTimeout: 5 * time.Minute,
		MaxRetries:     3,
		RetryBackoff:   time.Second,
	}
}

// Client talks to the vendor document-understanding API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a vendor client. Zero config fields fall back to
// DefaultConfig values.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("docparse: base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("docparse: API key is required")
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = def.PollTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		log:        log,
	}, nil
}

// ParseSync parses a document in a single synchronous call. Subject to the
// vendor's page limit; prefer Parse for large documents.
func (c *Client) ParseSync(ctx context.Context, content []byte) (*ParsedDocument, error) {
	body := map[string]any{
		"document": base64.StdEncoding.EncodeToString(content),
	}

	var doc ParsedDocument
	if err := c.postJSON(ctx, "/v1/parse", body, &doc); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if doc.Markdown == "" {
		return nil, ErrNoMarkdown
	}
	return &doc, nil
}

// Parse parses a document through the jobs API: create a job, poll until it
// completes, return the parsed document. onProgress, when non-nil, receives
// the vendor's fractional job progress and a short message.
func (c *Client) Parse(ctx context.Context, content []byte, onProgress func(fraction float64, message string)) (*ParsedDocument, error) {
	jobID, err := c.CreateJob(ctx, content)
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("job_id", jobID).Int("bytes", len(content)).Msg("Created parse job")

	if onProgress != nil {
		onProgress(0, fmt.Sprintf("Parse job created: %s", jobID))
	}
	return c.WaitForJob(ctx, jobID, onProgress)
}

// CreateJob submits a document for asynchronous parsing and returns the
// vendor job ID.
func (c *Client) CreateJob(ctx context.Context, content []byte) (string, error) {
	body := map[string]any{
		"document": base64.StdEncoding.EncodeToString(content),
	}

	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := c.postJSON(ctx, "/v1/parse/jobs", body, &resp); err != nil {
		return "", fmt.Errorf("create parse job: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("create parse job: vendor returned no job id")
	}
	return resp.JobID, nil
}

// JobStatus is one poll of a parse job.
type JobStatus struct {
	Status   string          `json:"status"`
	Progress float64         `json:"progress"`
	Data     *ParsedDocument `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// PollJob fetches the current status of a parse job.
func (c *Client) PollJob(ctx context.Context, jobID string) (*JobStatus, error) {
	var status JobStatus
	if err := c.getJSON(ctx, "/v1/parse/jobs/"+jobID, &status); err != nil {
		return nil, fmt.Errorf("poll parse job %s: %w", jobID, err)
	}
	return &status, nil
}

// WaitForJob polls a parse job until it completes, fails, or the configured
// timeout elapses. A completed job with no markdown is an ErrNoMarkdown.
func (c *Client) WaitForJob(ctx context.Context, jobID string, onProgress func(fraction float64, message string)) (*ParsedDocument, error) {
	deadline := time.Now().Add(c.cfg.PollTimeout)
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.PollJob(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case JobStatusCompleted:
			if status.Data == nil || status.Data.Markdown == "" {
				return nil, ErrNoMarkdown
			}
			if onProgress != nil {
				onProgress(1, "Parse completed")
			}
			c.log.Info().Str("job_id", jobID).Int("chunks", len(status.Data.Chunks)).Msg("Parse job completed")
			return status.Data, nil
		case JobStatusFailed:
			return nil, &JobFailedError{JobID: jobID, Reason: status.Error}
		default:
			if onProgress != nil {
				onProgress(status.Progress, fmt.Sprintf("Parsing document (%.0f%%)", status.Progress*100))
			}
		}

		if time.Now().After(deadline) {
			return nil, &JobTimeoutError{JobID: jobID, Timeout: c.cfg.PollTimeout}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Extract runs structured extraction over a markdown fragment with the given
// JSON Schema. The result is the unwrapped extraction object.
func (c *Client) Extract(ctx context.Context, markdown string, schemaJSON []byte) (map[string]any, error) {
	body := map[string]any{
		"markdown": markdown,
		"schema":   json.RawMessage(schemaJSON),
		"model":    c.cfg.Model,
	}

	var resp map[string]any
	if err := c.postJSON(ctx, "/v1/extract", body, &resp); err != nil {
		return nil, fmt.Errorf("extract request: %w", err)
	}
	return NormalizeResponse(resp), nil
}

// NormalizeResponse unwraps vendor extraction responses. Some API versions
// nest the payload one level under an "extraction" key; callers always see
// the flat shape.
func NormalizeResponse(resp map[string]any) map[string]any {
	if inner, ok := resp["extraction"].(map[string]any); ok {
		return inner
	}
	return resp
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// doJSON performs one API call with retries on transient failures
// (connection errors, 429, 5xx).
func (c *Client) doJSON(ctx context.Context, method, path string, payload []byte, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * c.cfg.RetryBackoff
			c.log.Warn().Str("path", path).Int("attempt", attempt).Err(lastErr).Msg("Retrying vendor API call")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("vendor API returned status %d: %s", resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("vendor API returned status %d: %s", resp.StatusCode, respBody)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}

	return lastErr
}
