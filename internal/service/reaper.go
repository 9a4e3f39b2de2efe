package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/printforge/printforge/config"
	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/observability/statsd"
)

// ReaperOptions groups dependencies for the ReaperService.
type ReaperOptions struct {
	Repo    core.ReaperRepository
	Blobs   core.BlobRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ReaperService runs the retention housekeeping loop: terminal jobs past
// the retention window move to cleanup_pending and lose their stored
// artifacts; cleanup_pending jobs past the purge age are deleted.
type ReaperService struct {
	repo    core.ReaperRepository
	blobs   core.BlobRepository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a ReaperService.
func NewReaperService(opts ReaperOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("reaper repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	opts.Config.Sanitize()
	return &ReaperService{
		repo:    opts.Repo,
		blobs:   opts.Blobs,
		cfg:     opts.Config,
		logger:  logger.With("component", "reaper"),
		metrics: opts.Metrics,
	}, nil
}

// Run starts the cleanup loop until the context is cancelled. Returns nil
// on graceful shutdown.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper",
		"interval", s.cfg.Interval,
		"retention_age", s.cfg.RetentionAge,
		"purge_age", s.cfg.PurgeAge,
	)

	// Jitter prevents a thundering herd when replicas start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil {
				s.logCleanupError(ctx, err)
			}
		}
	}
}

func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.cfg.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 -- bounded by maxJitter
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// runCleanup performs both housekeeping passes, batching until each is
// exhausted and checking the context between batches.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()
	marked, markErr := s.markRetired(ctx)
	purged, purgeErr := s.purgeRetired(ctx)

	s.emitCleanupMetrics(marked, purged, time.Since(start), errors.Join(markErr, purgeErr))

	if markErr != nil || purgeErr != nil {
		return fmt.Errorf("cleanup failed: %w", errors.Join(markErr, purgeErr))
	}
	return nil
}

// markRetired moves terminal jobs past the retention window into
// cleanup_pending and removes their stored artifacts.
func (s *ReaperService) markRetired(ctx context.Context) (int64, error) {
	var total int64
	for {
		jobs, err := s.repo.MarkCleanupPending(ctx, s.cfg.RetentionAge, s.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("mark cleanup pending: %w", err)
		}
		if len(jobs) == 0 {
			break
		}
		total += int64(len(jobs))

		for _, job := range jobs {
			s.removeArtifacts(ctx, job.ID, job.StoragePath)
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "marked jobs for cleanup",
			"count", total, "retention_age", s.cfg.RetentionAge)
	}
	return total, nil
}

// purgeRetired deletes cleanup_pending jobs past the purge age.
func (s *ReaperService) purgeRetired(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.repo.DeleteCleanupPending(ctx, s.cfg.PurgeAge, s.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("delete cleanup pending: %w", err)
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
	if total > 0 {
		s.logger.InfoContext(ctx, "purged retired jobs",
			"count", total, "purge_age", s.cfg.PurgeAge)
	}
	return total, nil
}

// removeArtifacts is best-effort: a missing blob must not stall retention.
func (s *ReaperService) removeArtifacts(ctx context.Context, jobID, storagePath string) {
	if s.blobs == nil {
		return
	}
	for _, path := range []string{storagePath, PreparedSTLPath(jobID)} {
		if path == "" {
			continue
		}
		if err := s.blobs.Remove(ctx, path); err != nil {
			s.logger.WarnContext(ctx, "remove artifact failed",
				"job_id", jobID, "path", path, "error", err)
		}
	}
}

func (s *ReaperService) emitCleanupMetrics(marked, purged int64, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	result := "success"
	switch {
	case err != nil:
		result = "error"
	case marked+purged == 0:
		result = "noop"
	}
	tags := map[string]string{"result": result}
	s.metrics.Count("reaper.cleanup", 1, tags)
	s.metrics.Timing("reaper.cleanup_duration", elapsed, statsd.CloneTags(tags))
	if marked > 0 {
		s.metrics.Count("reaper.jobs_marked", marked, nil)
	}
	if purged > 0 {
		s.metrics.Count("reaper.jobs_purged", purged, nil)
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.DebugContext(ctx, "cleanup cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "cleanup failed", "error", err)
}
