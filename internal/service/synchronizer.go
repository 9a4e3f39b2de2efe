package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/printforge/printforge/config"
	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/data"
	"github.com/printforge/printforge/internal/domain/model"
	"github.com/printforge/printforge/internal/faults"
	obserrors "github.com/printforge/printforge/internal/observability/errors"
	"github.com/printforge/printforge/internal/observability/statsd"
)

// pollingEntry is the transient per-job tracking record. It exists in the
// polling set iff the synchronizer believes the job is non-terminal; it is
// never persisted and never shared outside the mutex.
type pollingEntry struct {
	jobID         string
	lastCheckedAt time.Time
	retryCount    int
}

// SynchronizerOptions groups dependencies for the Synchronizer.
type SynchronizerOptions struct {
	Jobs         core.JobRepository
	PrintService core.PrintServiceAPI
	Webhooks     core.WebhookSender
	Config       config.SyncConfig
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
	Metrics      statsd.Sink
}

// Synchronizer reconciles tracked jobs against the external print-control
// service: it polls status, applies the normalization table, performs atomic
// persisted transitions, dispatches webhooks on change and evicts terminal
// jobs. One job's failure never aborts the sweep for the others.
type Synchronizer struct {
	jobs         core.JobRepository
	printService core.PrintServiceAPI
	webhooks     core.WebhookSender
	cfg          config.SyncConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink

	mu      sync.Mutex
	entries map[string]*pollingEntry
	running bool
	cancel  context.CancelFunc

	loopWG    sync.WaitGroup
	webhookWG sync.WaitGroup
}

// NewSynchronizer constructs a Synchronizer. Start must be called to begin
// polling; there is no ambient auto-start.
func NewSynchronizer(opts SynchronizerOptions) (*Synchronizer, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
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
	opts.Config.Sanitize()

	return &Synchronizer{
		jobs:         opts.Jobs,
		printService: opts.PrintService,
		webhooks:     opts.Webhooks,
		cfg:          opts.Config,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "job_synchronizer"),
		metrics:      opts.Metrics,
		entries:      make(map[string]*pollingEntry),
	}, nil
}

// Stats reports the tracked-set size and whether the loop is running.
type Stats struct {
	TrackedCount int  `json:"tracked_count"`
	Running      bool `json:"running"`
}

// Start loads all persisted non-terminal jobs into the polling set and
// begins the reconciliation loop. Idempotent: a second Start while running
// is a no-op.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.recover(ctx); err != nil {
		s.logger.WarnContext(ctx, "cold-start recovery incomplete", "error", err)
	}

	s.loopWG.Add(1)
	go s.run(loopCtx)

	s.logger.InfoContext(ctx, "synchronizer started",
		"poll_interval", s.cfg.PollInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
		"tracked", s.trackedCount(),
	)
	return nil
}

// Stop cancels the loop and waits for in-flight reconciliations and webhook
// dispatches to finish. Safe to call when not running.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.loopWG.Wait()
	s.webhookWG.Wait()
	s.logger.Info("synchronizer stopped")
}

// Track adds a job to the polling set.
func (s *Synchronizer) Track(jobID string) {
	if jobID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[jobID]; !ok {
		s.entries[jobID] = &pollingEntry{jobID: jobID}
	}
}

// Untrack removes a job from the polling set.
func (s *Synchronizer) Untrack(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, jobID)
}

// Stats returns a snapshot of the synchronizer state.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TrackedCount: len(s.entries), Running: s.running}
}

// ForceSync performs a single reconciliation step for one job synchronously.
// Additive to periodic tracking, not a replacement for it: outcomes feed the
// same retry bookkeeping as the periodic sweep.
func (s *Synchronizer) ForceSync(ctx context.Context, jobID string) error {
	if err := s.reconcile(ctx, jobID); err != nil {
		s.recordFailure(ctx, jobID, err)
		return err
	}
	s.resetRetries(jobID)
	return nil
}

// SyncAll reconciles every tracked job concurrently with per-job error
// isolation, bounded by the configured concurrency cap.
func (s *Synchronizer) SyncAll(ctx context.Context) {
	ids := s.trackedIDs()
	if len(ids) == 0 {
		return
	}
	start := s.timeProvider.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			s.reconcileIsolated(gctx, id)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // per-job errors are absorbed in reconcileIsolated

	if s.metrics != nil {
		s.metrics.Count("sync.sweep", 1, nil)
		s.metrics.Timing("sync.sweep_duration", time.Since(start), nil)
		s.metrics.Gauge("sync.tracked", float64(s.trackedCount()), nil)
	}
}

// run is the scheduling loop: a fast reconciliation ticker plus a slower
// safety-net sweep that evicts entries whose persisted job is gone or
// terminal.
func (s *Synchronizer) run(ctx context.Context) {
	defer s.loopWG.Done()

	poll := time.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()
	cleanup := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			s.SyncAll(ctx)
		case <-cleanup.C:
			s.evictStaleEntries(ctx)
		}
	}
}

// recover loads persisted non-terminal jobs into the polling set. The set
// itself is not persisted, so this is the cold-start path.
func (s *Synchronizer) recover(ctx context.Context) error {
	jobs, err := s.jobs.ListNonTerminal(ctx)
	if err != nil {
		return fmt.Errorf("list non-terminal jobs: %w", err)
	}
	for _, job := range jobs {
		s.Track(job.ID)
	}
	return nil
}

// reconcileIsolated wraps one reconciliation step with panic recovery and
// the retry/exhaustion bookkeeping. Errors never propagate to the sweep.
func (s *Synchronizer) reconcileIsolated(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic during job reconciliation",
				"job_id", jobID, "panic", r)
			s.recordFailure(ctx, jobID, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := s.reconcile(ctx, jobID); err != nil {
		s.recordFailure(ctx, jobID, err)
		return
	}
	s.resetRetries(jobID)
}

// reconcile performs one reconciliation step: poll the external status,
// compare against the persisted job, transition atomically on change,
// dispatch a webhook and evict on terminal.
func (s *Synchronizer) reconcile(ctx context.Context, jobID string) error {
	external, err := s.printService.JobStatus(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch external status: %w", err)
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load persisted job: %w", err)
	}
	if job == nil {
		// Deleted out-of-band; nothing left to reconcile.
		s.Untrack(jobID)
		s.logger.InfoContext(ctx, "tracked job no longer exists, untracked", "job_id", jobID)
		return nil
	}

	mapped := model.NormalizeExternalStatus(external.Status)
	switch {
	case mapped == job.Status:
		// no change
	case !job.Status.CanTransition(mapped):
		// A stale or out-of-order vendor report must never rewind the state
		// machine; the entry stays tracked until a legal report arrives.
		s.logger.WarnContext(ctx, "ignoring illegal status transition",
			"job_id", job.ID, "from", job.Status, "to", mapped, "reported", external.Status)
		if s.metrics != nil {
			s.metrics.Count("sync.illegal_transitions", 1, map[string]string{"from": string(job.Status)})
		}
	default:
		updated, err := s.transition(ctx, job, mapped, external)
		if err != nil {
			return err
		}
		if updated != nil {
			job = updated
		}
	}

	s.touch(jobID)
	if job.Status.Terminal() {
		s.Untrack(jobID)
	}
	return nil
}

func (s *Synchronizer) transition(
	ctx context.Context,
	job *model.Job,
	mapped model.JobStatus,
	external *core.ExternalJobStatus,
) (*model.Job, error) {
	params := model.UpdateStatusParams{Status: mapped}
	if mapped == model.JobStatusFailed {
		msg := "printer reported failure"
		if external.Error != nil && *external.Error != "" {
			msg = fmt.Sprintf("printer reported failure: %s", *external.Error)
		}
		params.ErrorMessage = &msg
	}

	updated, err := s.jobs.UpdateStatus(ctx, job.ID, params)
	if err != nil {
		return nil, fmt.Errorf("persist transition to %s: %w", mapped, err)
	}
	s.logger.InfoContext(ctx, "job status transition",
		"job_id", job.ID, "from", job.Status, "to", mapped)
	if s.metrics != nil {
		s.metrics.Count("sync.transitions", 1, map[string]string{"to": string(mapped)})
	}

	if updated != nil && updated.WebhookURL != nil && *updated.WebhookURL != "" {
		s.dispatchWebhook(updated)
	}
	return updated, nil
}

// dispatchWebhook fires the notification on its own goroutine so a slow or
// down endpoint never blocks the polling tick. The WaitGroup lets Stop drain
// in-flight sends.
func (s *Synchronizer) dispatchWebhook(job *model.Job) {
	if s.webhooks == nil {
		return
	}
	s.webhookWG.Add(1)
	go func() {
		defer s.webhookWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.webhooks.Send(ctx, job)
	}()
}

// recordFailure applies the retry policy: after MaxRetries consecutive
// failures the job is untracked and forced to failed. This is the one place
// the synchronizer unilaterally asserts failure instead of waiting on the
// external service.
func (s *Synchronizer) recordFailure(ctx context.Context, jobID string, cause error) {
	s.mu.Lock()
	entry, ok := s.entries[jobID]
	if !ok {
		s.mu.Unlock()
		return
	}
	entry.retryCount++
	exhausted := entry.retryCount >= s.cfg.MaxRetries
	retries := entry.retryCount
	if exhausted {
		delete(s.entries, jobID)
	}
	s.mu.Unlock()

	if !exhausted {
		s.logger.WarnContext(ctx, "job reconciliation failed",
			"job_id", jobID, "retry_count", retries, "max_retries", s.cfg.MaxRetries,
			"error", cause, "error_class", obserrors.Classify(cause))
		return
	}

	exhaustErr := &faults.SyncExhaustedError{JobID: jobID, Attempts: retries, Last: cause}
	s.logger.ErrorContext(ctx, "job reconciliation exhausted, forcing failed",
		"job_id", jobID, "attempts", retries, "error", cause)
	if s.metrics != nil {
		s.metrics.Count("sync.retry_exhausted", 1, nil)
	}

	msg := exhaustErr.Error()
	if _, err := s.jobs.UpdateStatus(ctx, jobID, model.UpdateStatusParams{
		Status:       model.JobStatusFailed,
		ErrorMessage: &msg,
	}); err != nil {
		s.logger.ErrorContext(ctx, "force-fail after sync exhaustion failed",
			"job_id", jobID, "error", err)
	}
}

// evictStaleEntries is the safety-net sweep: it removes tracked entries
// whose persisted job is missing or terminal, catching anything the main
// loop's in-flight concurrency missed.
func (s *Synchronizer) evictStaleEntries(ctx context.Context) {
	for _, id := range s.trackedIDs() {
		job, err := s.jobs.GetByID(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "stale-entry check failed", "job_id", id, "error", err)
			continue
		}
		if job == nil || job.Status.Terminal() {
			s.Untrack(id)
			s.logger.InfoContext(ctx, "evicted stale polling entry", "job_id", id)
		}
	}
}

func (s *Synchronizer) trackedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

func (s *Synchronizer) trackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Synchronizer) resetRetries(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[jobID]; ok {
		entry.retryCount = 0
	}
}

func (s *Synchronizer) touch(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[jobID]; ok {
		entry.lastCheckedAt = s.timeProvider.Now()
	}
}
