// Package service implements the printforge business logic: the preparation
// pipeline, the submission path, the job synchronizer, webhook delivery and
// retention housekeeping.
package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/data"
	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/observability/statsd"
)

// webhookEvent is the single event type carried by status notifications.
const webhookEvent = "job_status_update"

// webhookPayload is the JSON body POSTed to the user callback.
type webhookPayload struct {
	Event     string     `json:"event"`
	JobID     string     `json:"job_id"`
	Status    string     `json:"status"`
	Timestamp string     `json:"timestamp"`
	Job       *model.Job `json:"job"`
}

// WebhookDispatcherOptions groups dependencies for WebhookDispatcher.
type WebhookDispatcherOptions struct {
	Jobs         core.JobRepository
	Secret       string
	Timeout      time.Duration
	Client       *http.Client
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
	Metrics      statsd.Sink
}

// WebhookDispatcher signs and POSTs job-status payloads to user-configured
// callbacks. Delivery is best-effort and at-least-once: failures are logged
// and counted, never raised to the caller.
type WebhookDispatcher struct {
	jobs         core.JobRepository
	secret       []byte
	client       *http.Client
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

var _ core.WebhookSender = (*WebhookDispatcher)(nil)

// NewWebhookDispatcher constructs a dispatcher.
func NewWebhookDispatcher(opts WebhookDispatcherOptions) *WebhookDispatcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := opts.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var secret []byte
	if opts.Secret != "" {
		secret = []byte(opts.Secret)
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = data.RealTimeProvider{}
	}
	return &WebhookDispatcher{
		jobs:         opts.Jobs,
		secret:       secret,
		client:       hc,
		timeProvider: tp,
		logger:       logger.With("component", "webhook_dispatcher"),
		metrics:      opts.Metrics,
	}
}

// Send delivers one status notification. Returns true on any 2xx response;
// anything else, including transport failure, is false. The attempt counter
// is incremented regardless of outcome.
func (d *WebhookDispatcher) Send(ctx context.Context, job *model.Job) bool {
	if job == nil || job.WebhookURL == nil || *job.WebhookURL == "" {
		return false
	}

	if d.jobs != nil {
		if err := d.jobs.IncrementWebhookAttempts(ctx, job.ID); err != nil {
			d.logger.WarnContext(ctx, "increment webhook attempts failed", "job_id", job.ID, "error", err)
		}
	}

	body, err := json.Marshal(webhookPayload{
		Event:     webhookEvent,
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: d.timeProvider.Now().UTC().Format(time.RFC3339),
		Job:       job,
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "encode webhook payload failed", "job_id", job.ID, "error", err)
		d.count("webhook.send", "error")
		return false
	}

	ok := d.post(ctx, *job.WebhookURL, body, job.ID)
	if ok {
		d.count("webhook.send", "success")
	} else {
		d.count("webhook.send", "error")
	}
	return ok
}

func (d *WebhookDispatcher) post(ctx context.Context, url string, body []byte, jobID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		d.logger.WarnContext(ctx, "create webhook request failed", "job_id", jobID, "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if len(d.secret) > 0 {
		req.Header.Set("X-Signature", "sha256="+signPayload(d.secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WarnContext(ctx, "webhook delivery failed", "job_id", jobID, "error", err)
		return false
	}
	defer resp.Body.Close() //nolint:errcheck // response body is drained best-effort
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.logger.WarnContext(ctx, "webhook endpoint rejected payload",
			"job_id", jobID, "status_code", resp.StatusCode)
		return false
	}
	return true
}

func (d *WebhookDispatcher) count(name, result string) {
	if d.metrics == nil {
		return
	}
	d.metrics.Count(name, 1, map[string]string{"result": result})
}

// signPayload computes the hex HMAC-SHA256 of the exact serialized body.
func signPayload(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
