// Package printservice implements the HTTP client for the external
// printer-control service.
package printservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/faults"
)

// Config captures the client behaviour knobs.
type Config struct {
	BaseURL string
	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxAttempts bounds retries per call, including the first attempt.
	MaxAttempts int
	// RetryBackoff is the initial backoff between attempts, doubled each retry.
	RetryBackoff time.Duration
	Client       *http.Client
	Logger       *slog.Logger
}

// Client talks to the printer-control service with per-attempt timeouts and
// bounded exponential-backoff retries. Transport errors and 5xx responses
// are retried; 4xx responses are not.
type Client struct {
	baseURL     string
	maxAttempts int
	backoff     time.Duration
	client      *http.Client
	logger      *slog.Logger
}

var _ core.PrintServiceAPI = (*Client)(nil)

// NewClient builds a print-service client. Callers should pass a validated
// config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("print service base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     baseURL,
		maxAttempts: attempts,
		backoff:     backoff,
		client:      hc,
		logger:      logger.With("component", "print_service_client"),
	}, nil
}

// Submit sends a prepared job to the print service.
func (c *Client) Submit(ctx context.Context, params core.SubmitJobParams) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode submission payload: %w", err)
	}
	_, err = c.doWithRetry(ctx, http.MethodPost, "/api/print-job", body)
	return err
}

// JobStatus polls the external status for one job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*core.ExternalJobStatus, error) {
	respBody, err := c.doWithRetry(ctx, http.MethodGet, "/api/job-status/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	var status core.ExternalJobStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("decode job status response: %w", err)
	}
	return &status, nil
}

// Cancel requests cancellation; success is conveyed by status code.
func (c *Client) Cancel(ctx context.Context, jobID string) (bool, error) {
	_, err := c.doWithRetry(ctx, http.MethodPost, "/api/cancel-job/"+jobID, nil)
	if err != nil {
		var httpErr *statusError
		if errors.As(err, &httpErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Health checks the service health endpoint.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doWithRetry(ctx, http.MethodGet, "/api/health", nil)
	return err
}

// statusError is a non-2xx response after retries were exhausted or skipped.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("print service returned %d: %s", e.Code, e.Body)
}

func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		respBody, err := c.do(ctx, method, path, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		c.logger.WarnContext(ctx, "print service request failed",
			"method", method, "path", path, "attempt", attempt+1, "error", err)
	}
	return nil, &faults.ServiceUnavailableError{Service: "print service", Cause: lastErr}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close after full read

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// retryable reports whether another attempt may help: transport failures and
// 5xx responses qualify, client errors do not.
func retryable(err error) bool {
	var httpErr *statusError
	if errors.As(err, &httpErr) {
		return httpErr.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
