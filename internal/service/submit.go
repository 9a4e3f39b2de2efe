package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/data"
	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/faults"
)

// SubmissionOptions groups dependencies for the SubmissionService.
type SubmissionOptions struct {
	Jobs         core.JobRepository
	Preparation  *PreparationService
	PrintService core.PrintServiceAPI
	Tracker      core.JobTracker
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// SubmissionService drives the upload-to-printer handoff: prepare the model,
// submit it to the print-control service, stamp the transition and hand the
// job to the synchronizer. A failed job is resubmitted by running this flow
// again against a fresh job record, never by rewinding status in place.
type SubmissionService struct {
	jobs         core.JobRepository
	preparation  *PreparationService
	printService core.PrintServiceAPI
	tracker      core.JobTracker
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(opts SubmissionOptions) (*SubmissionService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Preparation == nil {
		return nil, errors.New("preparation service is required")
	}
	if opts.PrintService == nil {
		return nil, errors.New("print service client is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &SubmissionService{
		jobs:         opts.Jobs,
		preparation:  opts.Preparation,
		printService: opts.PrintService,
		tracker:      opts.Tracker,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "submission"),
	}, nil
}

// Submit prepares and submits one pending job. On success the job is in
// downloading state with submitted_at stamped and is tracked by the
// synchronizer.
func (s *SubmissionService) Submit(ctx context.Context, jobID string) (*PrepareResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil {
		return nil, faults.ErrJobNotFound
	}
	if job.Status != model.JobStatusPending {
		return nil, fmt.Errorf("job %s is %s, only pending jobs can be submitted", jobID, job.Status)
	}

	result, err := s.preparation.Prepare(ctx, job)
	if err != nil {
		if faults.IsRetryable(err) {
			s.logger.WarnContext(ctx, "preparation hit a transient failure, job left pending",
				"job_id", jobID, "error", err)
			return nil, err
		}
		s.failJob(ctx, jobID, err)
		return nil, err
	}

	err = s.printService.Submit(ctx, core.SubmitJobParams{
		JobID:      job.ID,
		UserID:     job.UserID,
		Filename:   job.Filename,
		STLPath:    result.STLPath,
		Settings:   job.PrintSettings,
		WebhookURL: job.WebhookURL,
	})
	if err != nil {
		if faults.IsRetryable(err) {
			// A transient print-service outage leaves the job pending so a
			// later submission attempt can pick it up unchanged.
			s.logger.WarnContext(ctx, "print service unavailable, job left pending",
				"job_id", jobID, "error", err)
			return nil, fmt.Errorf("submit to print service: %w", err)
		}
		s.failJob(ctx, jobID, err)
		return nil, fmt.Errorf("submit to print service: %w", err)
	}

	if _, err := s.jobs.UpdateStatus(ctx, jobID, model.UpdateStatusParams{
		Status: model.JobStatusDownloading,
	}); err != nil {
		return nil, fmt.Errorf("persist submission transition: %w", err)
	}
	if err := s.jobs.MarkSubmitted(ctx, jobID, s.timeProvider.Now()); err != nil {
		s.logger.WarnContext(ctx, "stamp submitted_at failed", "job_id", jobID, "error", err)
	}

	if s.tracker != nil {
		s.tracker.Track(jobID)
	}
	s.logger.InfoContext(ctx, "job submitted to print service", "job_id", jobID)
	return result, nil
}

// failJob records a preparation or submission failure on the job record.
// Preparation failures are fatal for this submission attempt; the error
// message distinguishes them from print-side failures.
func (s *SubmissionService) failJob(ctx context.Context, jobID string, cause error) {
	msg := cause.Error()
	if _, err := s.jobs.UpdateStatus(ctx, jobID, model.UpdateStatusParams{
		Status:       model.JobStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		s.logger.ErrorContext(ctx, "persist submission failure failed",
			"job_id", jobID, "cause", cause, "error", err)
	}
}
