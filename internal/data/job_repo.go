// Package data implements the persistence adapters: the pgx-backed job
// store, the Redis cache and the object-storage blob repository.
//
// Expected schema for print_jobs:
//
//	id               uuid primary key
//	user_id          text not null
//	filename         text not null
//	storage_path     text not null
//	file_size_bytes  bigint not null
//	status           text not null
//	model_metadata   jsonb
//	print_settings   jsonb not null
//	webhook_url      text
//	webhook_attempts int not null default 0
//	error_message    text
//	external_data    jsonb
//	created_at       timestamptz not null default now()
//	submitted_at     timestamptz
//	completed_at     timestamptz
//	updated_at       timestamptz not null default now()
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/printforge/printforge/internal/domain/model"
)

// ErrDuplicateJob is returned when a job with the same id already exists.
var ErrDuplicateJob = errors.New("duplicate job")

// JobRepo is the PostgreSQL implementation of the job store.
type JobRepo struct {
	pool Querier
	time TimeProvider
}

// Querier is the subset of pgxpool.Pool the repo uses, extracted so tests
// can substitute a fake.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Querier = (*pgxpool.Pool)(nil)

// NewJobRepo creates a JobRepo backed by the given pool.
func NewJobRepo(pool Querier) *JobRepo {
	return &JobRepo{pool: pool, time: RealTimeProvider{}}
}

const jobColumns = `id, user_id, filename, storage_path, file_size_bytes, status,
	model_metadata, print_settings, webhook_url, webhook_attempts, error_message,
	external_data, created_at, submitted_at, completed_at, updated_at`

// Create persists a new job in pending state.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate create request: %w", err)
	}
	settings, err := json.Marshal(req.PrintSettings)
	if err != nil {
		return nil, fmt.Errorf("marshal print settings: %w", err)
	}

	id := uuid.NewString()
	row := r.pool.QueryRow(ctx, `
		insert into print_jobs (
			id, user_id, filename, storage_path, file_size_bytes, status,
			print_settings, webhook_url
		) values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning `+jobColumns,
		id, req.UserID, req.Filename, req.StoragePath, req.FileSizeBytes,
		model.JobStatusPending, settings, req.WebhookURL,
	)
	job, err := scanJob(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicateJob
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// GetByID fetches a job, returning (nil, nil) when absent.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.pool.QueryRow(ctx, `select `+jobColumns+` from print_jobs where id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// UpdateStatus applies an atomic status transition in a single UPDATE
// statement, stamping completed_at when the new status is terminal.
// Concurrent updates to the same row serialize at the database.
func (r *JobRepo) UpdateStatus(ctx context.Context, id string, params model.UpdateStatusParams) (*model.Job, error) {
	if !params.Status.Valid() {
		return nil, fmt.Errorf("invalid status %q", params.Status)
	}
	now := r.time.Now().UTC()
	var completedAt *time.Time
	if params.Status == model.JobStatusComplete || params.Status == model.JobStatusFailed {
		completedAt = &now
	}

	row := r.pool.QueryRow(ctx, `
		update print_jobs
		set status = $2,
		    error_message = coalesce($3, error_message),
		    external_data = coalesce($4, external_data),
		    completed_at = coalesce($5, completed_at),
		    updated_at = $6
		where id = $1
		returning `+jobColumns,
		id, params.Status, params.ErrorMessage, params.ExternalData, completedAt, now,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update job %s status: %w", id, err)
	}
	return job, nil
}

// UpdateModelMetadata stores the geometry summary produced by preparation.
func (r *JobRepo) UpdateModelMetadata(ctx context.Context, id string, meta *model.ModelMetadata) error {
	encoded, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal model metadata: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		update print_jobs set model_metadata = $2, updated_at = $3 where id = $1`,
		id, encoded, r.time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update model metadata for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update model metadata: job %s not found", id)
	}
	return nil
}

// MarkSubmitted stamps submitted_at on the submission path.
func (r *JobRepo) MarkSubmitted(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		update print_jobs set submitted_at = $2, updated_at = $3 where id = $1`,
		id, at.UTC(), r.time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("mark job %s submitted: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark submitted: job %s not found", id)
	}
	return nil
}

// ListNonTerminal returns every job still moving through the state machine.
// Used for cold-start recovery of the synchronizer's polling set.
func (r *JobRepo) ListNonTerminal(ctx context.Context) ([]*model.Job, error) {
	rows, err := r.pool.Query(ctx, `
		select `+jobColumns+` from print_jobs
		where status not in ($1, $2, $3)
		order by created_at`,
		model.JobStatusComplete, model.JobStatusFailed, model.JobStatusCleanupPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list non-terminal jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job row: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return jobs, nil
}

// IncrementWebhookAttempts bumps the monotonic delivery counter.
func (r *JobRepo) IncrementWebhookAttempts(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		update print_jobs
		set webhook_attempts = webhook_attempts + 1, updated_at = $2
		where id = $1`,
		id, r.time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("increment webhook attempts for %s: %w", id, err)
	}
	return nil
}

// MarkCleanupPending moves terminal jobs past the retention window into
// cleanup_pending, returning the affected rows so the caller can remove
// their artifacts.
func (r *JobRepo) MarkCleanupPending(ctx context.Context, maxAge time.Duration, batchSize int) ([]*model.Job, error) {
	cutoff := r.time.Now().UTC().Add(-maxAge)
	rows, err := r.pool.Query(ctx, `
		update print_jobs
		set status = $1, updated_at = $2
		where id in (
			select id from print_jobs
			where status in ($3, $4) and completed_at < $5
			limit $6
		)
		returning `+jobColumns,
		model.JobStatusCleanupPending, r.time.Now().UTC(),
		model.JobStatusComplete, model.JobStatusFailed, cutoff, batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("mark cleanup pending: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan cleanup row: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cleanup rows: %w", err)
	}
	return jobs, nil
}

// DeleteCleanupPending removes cleanup_pending jobs older than maxAge.
func (r *JobRepo) DeleteCleanupPending(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	cutoff := r.time.Now().UTC().Add(-maxAge)
	tag, err := r.pool.Exec(ctx, `
		delete from print_jobs
		where id in (
			select id from print_jobs
			where status = $1 and updated_at < $2
			limit $3
		)`,
		model.JobStatusCleanupPending, cutoff, batchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("delete cleanup pending: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job       model.Job
		metadata  []byte
		settings  []byte
		external  []byte
	)
	err := row.Scan(
		&job.ID, &job.UserID, &job.Filename, &job.StoragePath, &job.FileSizeBytes,
		&job.Status, &metadata, &settings, &job.WebhookURL, &job.WebhookAttempts,
		&job.ErrorMessage, &external, &job.CreatedAt, &job.SubmittedAt,
		&job.CompletedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		job.ModelMetadata = &model.ModelMetadata{}
		if err := json.Unmarshal(metadata, job.ModelMetadata); err != nil {
			return nil, fmt.Errorf("decode model metadata: %w", err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &job.PrintSettings); err != nil {
			return nil, fmt.Errorf("decode print settings: %w", err)
		}
	}
	if len(external) > 0 {
		job.ExternalData = json.RawMessage(external)
	}
	return &job, nil
}
