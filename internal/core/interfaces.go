// Package core defines the consumer-side interfaces between the printforge
// services and their adapters. Services depend on these, never on concrete
// repositories or clients.
package core

import (
	"context"
	"time"

	"github.com/printforge/printforge/internal/domain/model"
)

// JobRepository is the persisted job store the pipeline reconciles against.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	// GetByID returns (nil, nil) when the job does not exist.
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// UpdateStatus performs the atomic status transition. Concurrent updates
	// to the same job must not interleave.
	UpdateStatus(ctx context.Context, id string, params model.UpdateStatusParams) (*model.Job, error)
	UpdateModelMetadata(ctx context.Context, id string, meta *model.ModelMetadata) error
	MarkSubmitted(ctx context.Context, id string, at time.Time) error
	ListNonTerminal(ctx context.Context) ([]*model.Job, error)
	IncrementWebhookAttempts(ctx context.Context, id string) error
}

// ReaperRepository covers the retention housekeeping queries.
type ReaperRepository interface {
	// MarkCleanupPending moves terminal jobs older than maxAge into
	// cleanup_pending, up to batchSize rows, returning the affected jobs.
	MarkCleanupPending(ctx context.Context, maxAge time.Duration, batchSize int) ([]*model.Job, error)
	// DeleteCleanupPending removes cleanup_pending jobs older than maxAge.
	DeleteCleanupPending(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}

// CacheRepository is a TTL'd byte cache (Redis-backed in production).
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns (nil, nil) on a cache miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// BlobRepository is the object store holding raw uploads and prepared
// artifacts.
type BlobRepository interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	Store(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, path string) error
}

// ExternalJobStatus is one poll result from the print-control service.
type ExternalJobStatus struct {
	Status   string  `json:"status"`
	Error    *string `json:"error,omitempty"`
	Progress float64 `json:"progress,omitempty"`
}

// SubmitJobParams is the submission payload for the print-control service.
type SubmitJobParams struct {
	JobID       string               `json:"job_id"`
	UserID      string               `json:"user_id"`
	Filename    string               `json:"filename"`
	STLPath     string               `json:"stl_path"`
	Settings    model.PrintSettings  `json:"settings"`
	WebhookURL  *string              `json:"webhook_url,omitempty"`
}

// PrintServiceAPI is the external printer-control HTTP surface.
type PrintServiceAPI interface {
	Submit(ctx context.Context, params SubmitJobParams) error
	JobStatus(ctx context.Context, jobID string) (*ExternalJobStatus, error)
	Cancel(ctx context.Context, jobID string) (bool, error)
	Health(ctx context.Context) error
}

// WebhookSender delivers job-status payloads to user callbacks. Send reports
// success/failure and never returns an error: webhook delivery is
// best-effort and not part of the job's success contract.
type WebhookSender interface {
	Send(ctx context.Context, job *model.Job) bool
}

// MeshConverter is one image-to-3D conversion capability. Implementations
// are arranged in a prioritized chain; the first success wins.
type MeshConverter interface {
	Name() string
	Convert(ctx context.Context, image []byte) ([]byte, error)
}

// JobTracker is the synchronizer surface the submission path needs.
type JobTracker interface {
	Track(jobID string)
	Untrack(jobID string)
}
