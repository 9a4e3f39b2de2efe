// Package model defines the core data types shared across the printforge
// job pipeline.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a print job.
type JobStatus string

const (
	// JobStatusPending is the sole initial state, set at upload time.
	JobStatusPending JobStatus = "pending"
	// JobStatusDownloading indicates the print service is fetching the model.
	JobStatusDownloading JobStatus = "downloading"
	// JobStatusSlicing indicates the print service is slicing the model.
	JobStatusSlicing JobStatus = "slicing"
	// JobStatusUploading indicates gcode is being transferred to the printer.
	JobStatusUploading JobStatus = "uploading"
	// JobStatusPrinting indicates the physical print is in progress.
	JobStatusPrinting JobStatus = "printing"
	// JobStatusComplete is terminal: the print finished successfully.
	JobStatusComplete JobStatus = "complete"
	// JobStatusFailed is terminal: the print failed or was cancelled.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCleanupPending marks a terminal job past its retention window,
	// eligible for artifact deletion. Reachable only from complete/failed.
	JobStatusCleanupPending JobStatus = "cleanup_pending"
)

// Valid returns true if the JobStatus is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusDownloading, JobStatusSlicing, JobStatusUploading,
		JobStatusPrinting, JobStatusComplete, JobStatusFailed, JobStatusCleanupPending:
		return true
	}
	return false
}

// Terminal reports whether no further automatic transition is expected.
// cleanup_pending is a housekeeping state past terminal and counts as terminal
// for polling purposes.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed || s == JobStatusCleanupPending
}

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", v)
	}
	*s = v
	return nil
}

// externalStatusTable normalizes free-text statuses reported by the
// print-control service. Vendors are loose with wording; anything not listed
// here maps to failed so an unexpected string never freezes a job.
var externalStatusTable = map[string]JobStatus{
	"queued":      JobStatusPending,
	"pending":     JobStatusPending,
	"download":    JobStatusDownloading,
	"downloading": JobStatusDownloading,
	"slice":       JobStatusSlicing,
	"slicing":     JobStatusSlicing,
	"upload":      JobStatusUploading,
	"uploading":   JobStatusUploading,
	"print":       JobStatusPrinting,
	"printing":    JobStatusPrinting,
	"finished":    JobStatusComplete,
	"success":     JobStatusComplete,
	"complete":    JobStatusComplete,
	"completed":   JobStatusComplete,
	"done":        JobStatusComplete,
	"error":       JobStatusFailed,
	"failed":      JobStatusFailed,
	"cancelled":   JobStatusFailed,
	"canceled":    JobStatusFailed,
}

// NormalizeExternalStatus maps a vendor status string onto the closed
// JobStatus enum. The mapping is total: unrecognized input maps to failed.
func NormalizeExternalStatus(raw string) JobStatus {
	if mapped, ok := externalStatusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return mapped
	}
	return JobStatusFailed
}

// CanTransition reports whether moving from s to next is a legal step in the
// job state machine. Terminal states only advance to cleanup_pending; failed
// jobs are resubmitted by creating a new submission flow, never by moving
// back to pending in place.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return false
	}
	switch s {
	case JobStatusComplete, JobStatusFailed:
		return next == JobStatusCleanupPending
	case JobStatusCleanupPending:
		return false
	default:
		// The external service may skip intermediate states between polls, so
		// any forward move from a non-terminal state is accepted.
		return next != JobStatusPending && next != JobStatusCleanupPending && next.Valid()
	}
}

// ModelMetadata summarizes the geometry extracted during preparation.
type ModelMetadata struct {
	VertexCount   int     `json:"vertex_count"`
	FaceCount     int     `json:"face_count"`
	WidthMM       float64 `json:"width_mm"`
	DepthMM       float64 `json:"depth_mm"`
	HeightMM      float64 `json:"height_mm"`
	SourceFormat  string  `json:"source_format"`
	Manifold      bool    `json:"manifold"`
	RepairApplied bool    `json:"repair_applied"`
}

// PrintSettings holds the user-overridable print parameters. Zero-valued
// fields are defaulted from the material and quality lookup tables at
// preparation time.
type PrintSettings struct {
	Material        string  `json:"material"`
	Quality         string  `json:"quality"`
	InfillPercent   int     `json:"infill_percent"`
	Supports        bool    `json:"supports"`
	LayerHeightMM   float64 `json:"layer_height_mm,omitempty"`
	PrintSpeedMMS   float64 `json:"print_speed_mms,omitempty"`
	NozzleTempC     int     `json:"nozzle_temp_c,omitempty"`
	BedTempC        int     `json:"bed_temp_c,omitempty"`
}

// Job represents one print request. Rows are mutated only through atomic
// UpdateStatus calls; fields are never edited piecemeal.
type Job struct {
	ID              string          `json:"id"                         db:"id"`
	UserID          string          `json:"user_id"                    db:"user_id"`
	Filename        string          `json:"filename"                   db:"filename"`
	StoragePath     string          `json:"storage_path"               db:"storage_path"`
	FileSizeBytes   int64           `json:"file_size_bytes"            db:"file_size_bytes"`
	Status          JobStatus       `json:"status"                     db:"status"`
	ModelMetadata   *ModelMetadata  `json:"model_metadata,omitempty"   db:"model_metadata"`
	PrintSettings   PrintSettings   `json:"print_settings"             db:"print_settings"`
	WebhookURL      *string         `json:"webhook_url,omitempty"      db:"webhook_url"`
	WebhookAttempts int             `json:"webhook_attempts"           db:"webhook_attempts"`
	ErrorMessage    *string         `json:"error_message,omitempty"    db:"error_message"`
	ExternalData    json.RawMessage `json:"external_data,omitempty"    db:"external_data"`
	CreatedAt       time.Time       `json:"created_at"                 db:"created_at"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"     db:"submitted_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	UpdatedAt       time.Time       `json:"updated_at"                 db:"updated_at"`
}

// CreateJobRequest represents a request to persist a new job record.
type CreateJobRequest struct {
	UserID        string        `json:"user_id"`
	Filename      string        `json:"filename"`
	StoragePath   string        `json:"storage_path"`
	FileSizeBytes int64         `json:"file_size_bytes"`
	PrintSettings PrintSettings `json:"print_settings"`
	WebhookURL    *string       `json:"webhook_url,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user id is required")
	}
	if r.Filename == "" {
		return errors.New("filename is required")
	}
	if r.StoragePath == "" {
		return errors.New("storage path is required")
	}
	if r.FileSizeBytes <= 0 {
		return errors.New("file size must be positive")
	}
	if r.PrintSettings.InfillPercent < 0 || r.PrintSettings.InfillPercent > 100 {
		return errors.New("infill percent must be between 0 and 100")
	}
	return nil
}

// UpdateStatusParams groups the fields of an atomic status transition.
type UpdateStatusParams struct {
	Status       JobStatus
	ErrorMessage *string
	ExternalData json.RawMessage
}
